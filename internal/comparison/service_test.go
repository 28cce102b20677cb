package comparison

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/cache"
	"github.com/maltedev/price-comparison-scraper/internal/models"
	"github.com/maltedev/price-comparison-scraper/internal/registry"
	"github.com/maltedev/price-comparison-scraper/internal/scraper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const exampleRegistry = `
competitors:
  - name: ExampleCo
    base_url: https://shop.example.com
    search_url: https://shop.example.com/search?q={query}
    is_active: true
`

// listingPage serves a fixed search result page to the in-page harvester.
type listingPage struct {
	mu    sync.Mutex
	gotos []string
}

func (p *listingPage) Goto(u string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotos = append(p.gotos, u)
	return nil
}

func (p *listingPage) Title() (string, error)   { return "Search: dinner set", nil }
func (p *listingPage) Content() (string, error) { return "", fmt.Errorf("not used") }

func (p *listingPage) Evaluate(script string, _ ...any) (any, error) {
	if script == "() => document.querySelectorAll('a img').length" {
		return float64(3), nil
	}
	return []any{
		map[string]any{"name": "Dinner Set 18 Pieces", "priceText": "₹1,799", "image": "/img/18.jpg", "url": "/products/dinner-18"},
		map[string]any{"name": "Dinner Set 24 Pieces", "priceText": "₹2,499.00", "image": "/img/24.jpg", "url": "/products/dinner-24"},
		map[string]any{"name": "Dinner Set 36 Pieces", "priceText": "Rs. 3,999", "image": "//cdn.example.com/36.jpg", "url": "/products/dinner-36"},
		map[string]any{"name": "Lazy Dinner Set", "priceText": "₹999", "image": "data:image/gif;base64,R0lGOD", "url": "/products/lazy"},
	}, nil
}

func (p *listingPage) CaptureJSON(func(string) bool) {}
func (p *listingPage) CapturedJSON() []any           { return nil }
func (p *listingPage) Close() error                  { return nil }

type listingBrowser struct{ page *listingPage }

func (b *listingBrowser) NewPage() (browser.Page, error) { return b.page, nil }
func (b *listingBrowser) Close() error                   { return nil }

func TestCompare_EndToEnd(t *testing.T) {
	reg, err := registry.Parse([]byte(exampleRegistry))
	require.NoError(t, err)

	page := &listingPage{}
	launches := 0
	launch := func(context.Context) (browser.Browser, error) {
		launches++
		return &listingBrowser{page: page}, nil
	}
	crawler := scraper.NewCrawler(scraper.CrawlSettings{MaxScrolls: 5, StagnantScrolls: 1}, nil, nil, discardLogger())
	orch := scraper.NewOrchestrator(reg, launch, crawler, discardLogger())
	svc := NewService(reg, orch, cache.New(cache.NewMemoryStore(), discardLogger()), Options{CacheTTL: time.Hour}, discardLogger())

	resp, err := svc.Compare(context.Background(), "Dinner Set")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.RunID)
	assert.Regexp(t, `^\d+\.\d{2}s$`, resp.Duration)
	require.Len(t, resp.Results, 3)
	for _, p := range resp.Results {
		assert.Equal(t, "ExampleCo", p.Competitor)
		assert.Greater(t, p.Price, 0.0)
		assert.NotContains(t, p.Image, "data:")
	}
	assert.Equal(t, []float64{1799, 2499, 3999}, []float64{resp.Results[0].Price, resp.Results[1].Price, resp.Results[2].Price})
	assert.Equal(t, "https://shop.example.com/search?q=Dinner+Set", page.gotos[0])

	again, err := svc.Compare(context.Background(), "  dinner set ")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, resp.Results, again.Results)
	assert.Equal(t, 1, launches)
}

type stubRegistry []models.CompetitorConfig

func (r stubRegistry) ListActive(context.Context) ([]models.CompetitorConfig, error) { return r, nil }

type stubScraper struct {
	calls   int
	queried [][]string
	scrape  func(ctx context.Context, configs []models.CompetitorConfig) ([]models.ScrapedProduct, error)
}

func (s *stubScraper) ScrapeCompetitors(ctx context.Context, _ string, configs []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
	s.calls++
	names := make([]string, 0, len(configs))
	for _, c := range configs {
		names = append(names, c.Name)
	}
	s.queried = append(s.queried, names)
	return s.scrape(ctx, configs)
}

func product(competitor, name string, price float64) models.ScrapedProduct {
	return models.ScrapedProduct{
		Name:       name,
		Price:      price,
		PriceText:  fmt.Sprintf("₹%.0f", price),
		Image:      "https://img.example.com/" + name + ".jpg",
		URL:        "https://" + competitor + ".example.com/p/" + name,
		Competitor: competitor,
	}
}

func TestCompare_EmptyQuery(t *testing.T) {
	s := &stubScraper{}
	svc := NewService(stubRegistry{{Name: "A"}}, s, nil, Options{}, discardLogger())

	resp, err := svc.Compare(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrEmptyQuery)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, MessageEmptyQuery, resp.Message)
	assert.Zero(t, s.calls)
}

func TestCompare_NoCompetitors(t *testing.T) {
	s := &stubScraper{}
	svc := NewService(stubRegistry{}, s, nil, Options{}, discardLogger())

	resp, err := svc.Compare(context.Background(), "mug")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Results)
	assert.Equal(t, MessageNoProducts, resp.Message)
	assert.Zero(t, s.calls)
}

func TestCompare_ScrapesOnlyCacheMisses(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore(), discardLogger())
	require.NoError(t, c.Put(ctx, "mug", "A", []models.ScrapedProduct{product("A", "mug-a", 300)}, time.Hour))

	s := &stubScraper{scrape: func(context.Context, []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
		return []models.ScrapedProduct{product("B", "mug-b", 200)}, nil
	}}
	svc := NewService(stubRegistry{{Name: "A"}, {Name: "B"}, {Name: "C"}}, s, c, Options{CacheTTL: time.Hour}, discardLogger())

	resp, err := svc.Compare(ctx, "Mug")

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"B", "C"}}, s.queried)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "B", resp.Results[0].Competitor)
	assert.Equal(t, "A", resp.Results[1].Competitor)
	assert.False(t, resp.Cached)

	_, ok := c.Get(ctx, "mug", "B")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "mug", "C")
	assert.False(t, ok, "empty results are not cached")
}

func TestCompare_CancelledRunIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := cache.New(cache.NewMemoryStore(), discardLogger())

	s := &stubScraper{scrape: func(ctx context.Context, _ []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
		cancel()
		return []models.ScrapedProduct{product("A", "partial", 100)}, ctx.Err()
	}}
	svc := NewService(stubRegistry{{Name: "A"}}, s, c, Options{}, discardLogger())

	_, err := svc.Compare(ctx, "mug")

	assert.ErrorIs(t, err, context.Canceled)
	_, ok := c.Get(context.Background(), "mug", "A")
	assert.False(t, ok)
}

func TestCompare_LaunchFailure(t *testing.T) {
	s := &stubScraper{scrape: func(context.Context, []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
		return nil, fmt.Errorf("%w: chromium not found", scraper.ErrBrowserLaunch)
	}}
	svc := NewService(stubRegistry{{Name: "A"}}, s, nil, Options{}, discardLogger())

	resp, err := svc.Compare(context.Background(), "mug")

	assert.ErrorIs(t, err, scraper.ErrBrowserLaunch)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, MessageFailed, resp.Message)
}

func TestCompare_BoundsConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	s := &stubScraper{scrape: func(ctx context.Context, _ []models.CompetitorConfig) ([]models.ScrapedProduct, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}}
	svc := NewService(stubRegistry{{Name: "A"}}, s, nil, Options{MaxConcurrentRuns: 1}, discardLogger())

	go svc.Compare(context.Background(), "first")
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.Compare(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestFinalize(t *testing.T) {
	unknown := product("A", "unknown", 0)
	unknown.PriceText = models.PriceNotAvailable

	in := []models.ScrapedProduct{
		product("A", "pricey", 900),
		unknown,
		product("B", "cheap", 100),
		product("A", "pricey", 900),
		product("C", "also-100", 100),
	}

	out := finalize(in)

	require.Len(t, out, 4)
	assert.Equal(t, "cheap", out[0].Name)
	assert.Equal(t, "also-100", out[1].Name)
	assert.Equal(t, "pricey", out[2].Name)
	assert.Equal(t, "unknown", out[3].Name)
}
