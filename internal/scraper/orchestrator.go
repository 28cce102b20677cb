package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/models"
)

// Orchestrator runs one crawl per competitor inside a single shared browser.
type Orchestrator struct {
	registry CompetitorSource
	launch   browser.Launcher
	crawler  *Crawler
	logger   *slog.Logger
}

func NewOrchestrator(registry CompetitorSource, launch browser.Launcher, crawler *Crawler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		launch:   launch,
		crawler:  crawler,
		logger:   logger.With("component", "orchestrator"),
	}
}

// ScrapeAllCompetitors scrapes every active competitor for query. An empty
// registry yields no results and no error.
func (o *Orchestrator) ScrapeAllCompetitors(ctx context.Context, query string) ([]models.ScrapedProduct, error) {
	configs, err := o.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitors: %w", err)
	}
	return o.ScrapeCompetitors(ctx, query, configs)
}

// ScrapeCompetitors scrapes the given competitors in order. A competitor
// that fails is logged and skipped; only a browser launch failure or
// cancellation fails the whole run.
func (o *Orchestrator) ScrapeCompetitors(ctx context.Context, query string, configs []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	runID := RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.logger.With("run_id", runID, "query", query)

	b, err := o.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}
	defer b.Close()

	// Closing the browser unblocks any in-flight navigation.
	stop := context.AfterFunc(ctx, func() {
		if err := b.Close(); err != nil {
			log.Debug("browser close after cancel", "error", err)
		}
	})
	defer stop()

	start := time.Now()
	var results []models.ScrapedProduct

	for _, cfg := range configs {
		if ctx.Err() != nil {
			break
		}

		products, err := o.scrapeCompetitor(ctx, b, query, cfg, log)
		if err != nil {
			log.Warn("competitor scrape failed", "competitor", cfg.Name, "error", err)
			continue
		}
		log.Info("competitor scraped", "competitor", cfg.Name, "count", len(products))
		results = append(results, products...)
	}

	if err := ctx.Err(); err != nil {
		log.Info("scrape cancelled", "count", len(results))
		return results, err
	}

	log.Info("scrape finished", "competitors", len(configs), "count", len(results), "duration", time.Since(start))
	return results, nil
}

func (o *Orchestrator) scrapeCompetitor(ctx context.Context, b browser.Browser, query string, cfg models.CompetitorConfig, log *slog.Logger) ([]models.ScrapedProduct, error) {
	cfg = cfg.WithDefaults()

	searchURL, err := cfg.BuildSearchURL(query)
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	log.Debug("page state", "competitor", cfg.Name, "state", PageCreated.String())
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("page close failed", "competitor", cfg.Name, "error", err)
		}
		log.Debug("page state", "competitor", cfg.Name, "state", PageClosed.String())
	}()

	raw, err := o.crawler.Crawl(ctx, page, cfg, searchURL)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, cfg), nil
}
