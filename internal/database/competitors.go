package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

// CompetitorRepository reads and writes the competitors table.
type CompetitorRepository struct {
	db *DB
}

func NewCompetitorRepository(db *DB) *CompetitorRepository {
	return &CompetitorRepository{db: db}
}

// ListActive returns active competitors ordered by name.
func (r *CompetitorRepository) ListActive(ctx context.Context) ([]models.CompetitorConfig, error) {
	query := `
		SELECT name, base_url, search_url, selectors, is_active, max_results, timeout_ms
		FROM competitors
		WHERE is_active = TRUE
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	defer rows.Close()

	var configs []models.CompetitorConfig
	for rows.Next() {
		var (
			c         models.CompetitorConfig
			selectors []byte
		)
		if err := rows.Scan(&c.Name, &c.BaseURL, &c.SearchURL, &selectors, &c.IsActive, &c.MaxResults, &c.Timeout); err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		if len(selectors) > 0 {
			if err := json.Unmarshal(selectors, &c.Selectors); err != nil {
				return nil, fmt.Errorf("invalid selectors for competitor %s: %w", c.Name, err)
			}
		}
		configs = append(configs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competitors: %w", err)
	}

	return configs, nil
}

// Upsert inserts a competitor or replaces the one with the same name.
func (r *CompetitorRepository) Upsert(ctx context.Context, c models.CompetitorConfig) error {
	if err := c.Validate(); err != nil {
		return err
	}

	selectors, err := json.Marshal(c.Selectors)
	if err != nil {
		return fmt.Errorf("failed to encode selectors: %w", err)
	}

	query := `
		INSERT INTO competitors (name, base_url, search_url, selectors, is_active, max_results, timeout_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			search_url = EXCLUDED.search_url,
			selectors = EXCLUDED.selectors,
			is_active = EXCLUDED.is_active,
			max_results = EXCLUDED.max_results,
			timeout_ms = EXCLUDED.timeout_ms,
			updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		c.Name, c.BaseURL, c.SearchURL, selectors, c.IsActive, c.Limit(), int(c.TimeoutDuration().Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to upsert competitor %s: %w", c.Name, err)
	}
	return nil
}
