// Package comparison answers product queries with a price-sorted list of
// competitor listings, scraping only what the cache cannot serve.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/maltedev/price-comparison-scraper/internal/cache"
	"github.com/maltedev/price-comparison-scraper/internal/models"
	"github.com/maltedev/price-comparison-scraper/internal/registry"
	"github.com/maltedev/price-comparison-scraper/internal/scraper"
)

var ErrEmptyQuery = errors.New("product name is required")

const (
	MessageEmptyQuery = "Please enter a product name"
	MessageNoProducts = "No products found"
	MessageFailed     = "Search failed"
)

// Scraper scrapes a fixed set of competitors for one query.
type Scraper interface {
	ScrapeCompetitors(ctx context.Context, query string, configs []models.CompetitorConfig) ([]models.ScrapedProduct, error)
}

type Response struct {
	Success  bool                    `json:"success"`
	Results  []models.ScrapedProduct `json:"results"`
	Duration string                  `json:"duration"`
	Message  string                  `json:"message,omitempty"`
	Cached   bool                    `json:"cached"`
	RunID    string                  `json:"runId,omitempty"`
}

type Options struct {
	CacheTTL time.Duration
	// MaxConcurrentRuns bounds how many comparisons scrape at once; each
	// run owns a browser.
	MaxConcurrentRuns int64
}

type Service struct {
	registry registry.Registry
	scraper  Scraper
	cache    *cache.Cache
	ttl      time.Duration
	runs     *semaphore.Weighted
	logger   *slog.Logger
}

// NewService wires the service. A nil cache disables caching.
func NewService(reg registry.Registry, s Scraper, c *cache.Cache, opts Options, logger *slog.Logger) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: reg,
		scraper:  s,
		cache:    c,
		ttl:      opts.CacheTTL,
		runs:     semaphore.NewWeighted(opts.MaxConcurrentRuns),
		logger:   logger.With("component", "comparison"),
	}
}

// Compare returns listings for productName from every active competitor.
// Cancellation and browser launch failures are returned as errors; a failing
// competitor only reduces the result set.
func (s *Service) Compare(ctx context.Context, productName string) (*Response, error) {
	start := time.Now()
	query := strings.TrimSpace(productName)
	if query == "" {
		return &Response{Success: false, Results: []models.ScrapedProduct{}, Duration: elapsed(start), Message: MessageEmptyQuery}, ErrEmptyQuery
	}

	runID := uuid.NewString()
	ctx = scraper.WithRunID(ctx, runID)
	log := s.logger.With("run_id", runID, "query", query)

	if err := s.runs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.runs.Release(1)

	configs, err := s.registry.ListActive(ctx)
	if err != nil {
		log.Error("failed to load competitors", "error", err)
		return &Response{Success: false, Results: []models.ScrapedProduct{}, Duration: elapsed(start), Message: MessageFailed, RunID: runID},
			fmt.Errorf("failed to load competitors: %w", err)
	}

	var (
		results []models.ScrapedProduct
		misses  []models.CompetitorConfig
	)
	for _, cfg := range configs {
		if cached, ok := s.cacheGet(ctx, query, cfg.Name); ok {
			results = append(results, cached...)
			continue
		}
		misses = append(misses, cfg)
	}
	log.Debug("cache lookup done", "competitors", len(configs), "misses", len(misses))

	if len(misses) > 0 {
		fresh, err := s.scraper.ScrapeCompetitors(ctx, query, misses)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("scrape failed", "error", err)
			return &Response{
				Success:  false,
				Results:  finalize(results),
				Duration: elapsed(start),
				Message:  MessageFailed,
				RunID:    runID,
			}, err
		}
		s.cachePut(ctx, query, misses, fresh, log)
		results = append(results, fresh...)
	}

	resp := &Response{
		Success:  true,
		Results:  finalize(results),
		Duration: elapsed(start),
		Cached:   len(configs) > 0 && len(misses) == 0,
		RunID:    runID,
	}
	if len(resp.Results) == 0 {
		resp.Message = MessageNoProducts
	}

	log.Info("comparison finished", "count", len(resp.Results), "cached", resp.Cached, "duration", resp.Duration)
	return resp, nil
}

func (s *Service) cacheGet(ctx context.Context, query, competitor string) ([]models.ScrapedProduct, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, query, competitor)
}

// cachePut stores each scraped competitor's non-empty results. Empty results
// are not cached so a transient block does not stick for the TTL.
func (s *Service) cachePut(ctx context.Context, query string, scraped []models.CompetitorConfig, fresh []models.ScrapedProduct, log *slog.Logger) {
	if s.cache == nil {
		return
	}

	byCompetitor := make(map[string][]models.ScrapedProduct)
	for _, p := range fresh {
		byCompetitor[p.Competitor] = append(byCompetitor[p.Competitor], p)
	}

	for _, cfg := range scraped {
		products := byCompetitor[cfg.Name]
		if len(products) == 0 {
			continue
		}
		if err := s.cache.Put(ctx, query, cfg.Name, products, s.ttl); err != nil {
			log.Debug("ignoring cache write failure", "competitor", cfg.Name, "error", err)
		}
	}
}

// finalize removes duplicates and sorts by ascending price with unknown
// prices last. The sort is stable so equal prices keep scrape order.
func finalize(products []models.ScrapedProduct) []models.ScrapedProduct {
	seen := make(map[string]struct{}, len(products))
	out := make([]models.ScrapedProduct, 0, len(products))
	for _, p := range products {
		key := p.Competitor + "|" + p.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case !a.HasPrice():
			return false
		case !b.HasPrice():
			return true
		default:
			return a.Price < b.Price
		}
	})
	return out
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.2fs", time.Since(start).Seconds())
}
