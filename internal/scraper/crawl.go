package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/models"
	"github.com/maltedev/price-comparison-scraper/internal/parser"
	"github.com/maltedev/price-comparison-scraper/internal/ratelimit"
)

// PageState is the lifecycle of one competitor page.
type PageState int

const (
	PageCreated PageState = iota
	PageNavigated
	PageChallengeDetected
	PageRetried
	PagePassed
	PageAborted
	PageExtracting
	PageClosed
)

func (s PageState) String() string {
	switch s {
	case PageCreated:
		return "created"
	case PageNavigated:
		return "navigated"
	case PageChallengeDetected:
		return "challenge_detected"
	case PageRetried:
		return "retried"
	case PagePassed:
		return "passed"
	case PageAborted:
		return "aborted"
	case PageExtracting:
		return "extracting"
	case PageClosed:
		return "closed"
	}
	return "unknown"
}

type CrawlSettings struct {
	ScrollWait      time.Duration
	MaxScrolls      int
	StagnantScrolls int
	SettleWait      time.Duration
	ChallengeWait   time.Duration
	ExtraScrolls    int
	MaxPages        int
	PageDelayMin    time.Duration
	PageDelayMax    time.Duration
}

func DefaultCrawlSettings() CrawlSettings {
	return CrawlSettings{
		ScrollWait:      2500 * time.Millisecond,
		MaxScrolls:      30,
		StagnantScrolls: 3,
		SettleWait:      3 * time.Second,
		ChallengeWait:   8 * time.Second,
		ExtraScrolls:    3,
		MaxPages:        20,
		PageDelayMin:    2500 * time.Millisecond,
		PageDelayMax:    8 * time.Second,
	}
}

// Crawler drives one page through a competitor's search results using the
// strategy of the competitor's site family.
type Crawler struct {
	settings  CrawlSettings
	families  *SiteFamilies
	challenge *browser.ChallengeDetector
	logger    *slog.Logger
}

func NewCrawler(settings CrawlSettings, families *SiteFamilies, challenge *browser.ChallengeDetector, logger *slog.Logger) *Crawler {
	if families == nil {
		families = DefaultSiteFamilies()
	}
	if challenge == nil {
		challenge = browser.NewChallengeDetector(families.ChallengeTitles...)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		settings:  settings,
		families:  families,
		challenge: challenge,
		logger:    logger.With("component", "crawler"),
	}
}

// Crawl collects raw product candidates for one competitor. Paginated crawls
// that fail after the first page return what they gathered without error.
func (c *Crawler) Crawl(ctx context.Context, page browser.Page, cfg models.CompetitorConfig, searchURL string) ([]models.RawProduct, error) {
	family, rule := c.families.Classify(cfg)
	log := c.logger.With("competitor", cfg.Name, "family", family.String())

	if family == FamilyPaginated {
		return c.crawlPaginated(ctx, page, cfg, rule, searchURL, log)
	}
	return c.crawlGeneric(ctx, page, cfg, searchURL, log)
}

func (c *Crawler) crawlGeneric(ctx context.Context, page browser.Page, cfg models.CompetitorConfig, searchURL string, log *slog.Logger) ([]models.RawProduct, error) {
	if err := page.Goto(searchURL, cfg.TimeoutDuration()); err != nil {
		return nil, err
	}
	log.Debug("page state", "state", PageNavigated.String(), "url", searchURL)

	if err := sleep(ctx, c.settings.SettleWait); err != nil {
		return nil, err
	}

	last := c.countImages(page)
	stagnant := 0
	scrolls := 0
	for scrolls < c.settings.MaxScrolls && stagnant < c.settings.StagnantScrolls {
		if _, err := page.Evaluate(scrollScript); err != nil {
			log.Debug("scroll failed", "error", err)
			break
		}
		scrolls++
		if err := sleep(ctx, c.settings.ScrollWait); err != nil {
			return nil, err
		}

		n := c.countImages(page)
		if n > last {
			last = n
			stagnant = 0
		} else {
			stagnant++
		}
	}
	log.Debug("scrolling finished", "scrolls", scrolls, "images", last)

	log.Debug("page state", "state", PageExtracting.String())
	return c.harvestDOM(page, cfg, log)
}

func (c *Crawler) crawlPaginated(ctx context.Context, page browser.Page, cfg models.CompetitorConfig, rule *FamilyRule, searchURL string, log *slog.Logger) ([]models.RawProduct, error) {
	page.CaptureJSON(rule.MatchesResponse)

	maxPages := c.settings.MaxPages
	if rule.MaxPages > 0 {
		maxPages = rule.MaxPages
	}
	pacer := ratelimit.NewAdaptiveRateLimiter(c.settings.PageDelayMin, c.settings.PageDelayMax)

	var all []models.RawProduct
	seen := make(map[string]struct{})

	for n := 1; n <= maxPages; n++ {
		if err := pacer.Wait(ctx); err != nil {
			return all, err
		}

		pageURL, err := withPageParam(searchURL, rule.PageParam, n)
		if err != nil {
			return all, err
		}
		plog := log.With("page", n)

		products, err := c.crawlPage(ctx, page, cfg, pageURL, pacer, plog)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			if n == 1 {
				return nil, err
			}
			plog.Warn("stopping pagination", "error", err, "count", len(all))
			break
		}

		added := 0
		for _, p := range products {
			key := rawKey(p, cfg.BaseURL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, p)
			added++
		}
		plog.Debug("page harvested", "found", len(products), "new", added, "count", len(all))

		if added == 0 {
			break
		}
	}

	return all, nil
}

func (c *Crawler) crawlPage(ctx context.Context, page browser.Page, cfg models.CompetitorConfig, pageURL string, pacer *ratelimit.AdaptiveRateLimiter, log *slog.Logger) ([]models.RawProduct, error) {
	if err := page.Goto(pageURL, cfg.TimeoutDuration()); err != nil {
		return nil, err
	}
	log.Debug("page state", "state", PageNavigated.String(), "url", pageURL)

	if err := sleep(ctx, c.settings.SettleWait); err != nil {
		return nil, err
	}

	if c.challenged(page) {
		log.Debug("page state", "state", PageChallengeDetected.String())
		pacer.RecordError()

		if err := sleep(ctx, c.settings.ChallengeWait); err != nil {
			return nil, err
		}
		log.Debug("page state", "state", PageRetried.String())

		if c.challenged(page) {
			log.Debug("page state", "state", PageAborted.String())
			return nil, fmt.Errorf("%w: %s", ErrChallenge, pageURL)
		}
		log.Debug("page state", "state", PagePassed.String())
	} else {
		pacer.RecordSuccess()
	}

	for i := 0; i < c.settings.ExtraScrolls; i++ {
		if _, err := page.Evaluate(scrollScript); err != nil {
			log.Debug("scroll failed", "error", err)
			break
		}
		if err := sleep(ctx, c.settings.ScrollWait); err != nil {
			return nil, err
		}
	}

	log.Debug("page state", "state", PageExtracting.String())
	dom, err := c.harvestDOM(page, cfg, log)
	if err != nil {
		log.Debug("dom harvest failed", "error", err)
	}

	structured := c.harvestStructured(page, cfg, log)
	if err != nil && len(structured) == 0 {
		return nil, err
	}
	return append(dom, structured...), nil
}

func (c *Crawler) challenged(page browser.Page) bool {
	title, err := page.Title()
	if err != nil {
		return false
	}
	return c.challenge.IsChallenge(title)
}

func (c *Crawler) countImages(page browser.Page) int {
	v, err := page.Evaluate(countImagesScript)
	if err != nil {
		return 0
	}
	return toInt(v)
}

// harvestDOM runs the in-page harvester and falls back to the static HTML
// heuristics when evaluation fails.
func (c *Crawler) harvestDOM(page browser.Page, cfg models.CompetitorConfig, log *slog.Logger) ([]models.RawProduct, error) {
	v, err := page.Evaluate(harvestScript, harvestArgs(cfg))
	if err == nil {
		products, decodeErr := decodeRawProducts(v)
		if decodeErr == nil {
			return products, nil
		}
		err = decodeErr
	}
	log.Debug("in-page harvest failed, using html snapshot", "error", err)

	html, contentErr := page.Content()
	if contentErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoExtraction, contentErr)
	}
	products, parseErr := parser.HarvestHTML(html, cfg.BaseURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoExtraction, parseErr)
	}
	return products, nil
}

// harvestStructured collects products from intercepted JSON responses and
// from state embedded in the page.
func (c *Crawler) harvestStructured(page browser.Page, cfg models.CompetitorConfig, log *slog.Logger) []models.RawProduct {
	docs := page.CapturedJSON()

	if v, err := page.Evaluate(pageStateScript); err == nil {
		for _, s := range toStrings(v) {
			doc, err := parser.DecodeJSON([]byte(s))
			if err != nil {
				continue
			}
			docs = append(docs, doc)
		}
	} else {
		log.Debug("page state read failed", "error", err)
	}

	var out []models.RawProduct
	for _, doc := range docs {
		for _, p := range parser.CollectProductsFromJSON(doc, cfg.Name, cfg.BaseURL) {
			out = append(out, models.RawProduct{
				Name:      p.Name,
				Brand:     p.BrandName,
				PriceText: p.PriceText,
				Image:     p.Image,
				URL:       p.URL,
			})
		}
	}
	return out
}

func withPageParam(rawURL, param string, n int) (string, error) {
	if param == "" {
		param = defaultPageParam
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid search url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func rawKey(p models.RawProduct, baseURL string) string {
	if u := parser.ResolveURL(p.URL, baseURL); u != "" {
		return "url:" + u
	}
	return "ni:" + p.Name + "|" + parser.ResolveURL(p.Image, baseURL)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
