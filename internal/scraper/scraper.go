// Package scraper crawls competitor search pages in a shared headless
// browser and turns what it finds into normalised product listings.
package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

var (
	ErrBrowserLaunch = errors.New("failed to launch browser")
	ErrChallenge     = errors.New("blocked by bot challenge")
	ErrNoExtraction  = errors.New("page extraction failed")
)

// CompetitorSource supplies the active competitor configurations.
type CompetitorSource interface {
	ListActive(ctx context.Context) ([]models.CompetitorConfig, error)
}

type runIDKey struct{}

// WithRunID attaches an orchestration run identifier to ctx so log lines of
// one comparison can be correlated.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the identifier set by WithRunID, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
