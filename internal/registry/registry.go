// Package registry provides the active competitor configurations.
package registry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

// Registry lists the competitors to scrape. Callers treat the returned
// slice as an immutable snapshot for the duration of one run.
type Registry interface {
	ListActive(ctx context.Context) ([]models.CompetitorConfig, error)
}

type fileFormat struct {
	Competitors []models.CompetitorConfig `yaml:"competitors"`
}

// FileRegistry serves competitors loaded from a YAML file.
type FileRegistry struct {
	competitors []models.CompetitorConfig
}

// LoadFile reads and validates a competitors file. Names must be unique.
func LoadFile(path string) (*FileRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*FileRegistry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Competitors))
	for i := range f.Competitors {
		c := &f.Competitors[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("competitor %d: %w", i, err)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate competitor name %q", c.Name)
		}
		seen[key] = struct{}{}
	}

	return &FileRegistry{competitors: f.Competitors}, nil
}

func (r *FileRegistry) ListActive(ctx context.Context) ([]models.CompetitorConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var active []models.CompetitorConfig
	for _, c := range r.competitors {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// All returns every configured competitor, active or not.
func (r *FileRegistry) All() []models.CompetitorConfig {
	return append([]models.CompetitorConfig(nil), r.competitors...)
}
