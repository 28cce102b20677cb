package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/price-comparison-scraper/internal/cache"
)

// CacheStore keeps comparison cache entries in the comparison_cache table.
// Expired rows stay until DeleteExpired removes them.
type CacheStore struct {
	db *DB
}

func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

func (s *CacheStore) Load(ctx context.Context, key string) (*cache.Entry, error) {
	query := `
		SELECT cache_key, query, competitor, results, created_at, expires_at
		FROM comparison_cache
		WHERE cache_key = $1`

	var (
		e       cache.Entry
		results []byte
	)
	err := s.db.QueryRow(ctx, query, key).Scan(&e.Key, &e.Query, &e.Competitor, &results, &e.CreatedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	if err := json.Unmarshal(results, &e.Results); err != nil {
		return nil, fmt.Errorf("failed to decode cached results: %w", err)
	}
	return &e, nil
}

func (s *CacheStore) Save(ctx context.Context, e *cache.Entry) error {
	results, err := json.Marshal(e.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	query := `
		INSERT INTO comparison_cache (cache_key, query, competitor, results, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cache_key) DO UPDATE SET
			query = EXCLUDED.query,
			competitor = EXCLUDED.competitor,
			results = EXCLUDED.results,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	if _, err := s.db.Exec(ctx, query, e.Key, e.Query, e.Competitor, results, e.CreatedAt, e.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry is not after now.
func (s *CacheStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM comparison_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
