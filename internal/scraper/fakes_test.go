package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/models"
)

type fakePage struct {
	mu sync.Mutex

	gotoErr     func(url string) error
	title       func(url string) string
	harvest     func(url string) (any, error)
	content     string
	imageCounts []int
	state       []string
	captured    []any

	current string
	gotos   []string
	scrolls int
	closed  bool
}

func (p *fakePage) Goto(u string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gotos = append(p.gotos, u)
	if p.gotoErr != nil {
		if err := p.gotoErr(u); err != nil {
			return err
		}
	}
	p.current = u
	return nil
}

func (p *fakePage) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.title == nil {
		return "Search results", nil
	}
	return p.title(p.current), nil
}

func (p *fakePage) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.content == "" {
		return "", errors.New("no content")
	}
	return p.content, nil
}

func (p *fakePage) Evaluate(script string, _ ...any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch script {
	case scrollScript:
		p.scrolls++
		return float64(1000 * p.scrolls), nil
	case countImagesScript:
		if len(p.imageCounts) == 0 {
			return float64(0), nil
		}
		n := p.imageCounts[0]
		if len(p.imageCounts) > 1 {
			p.imageCounts = p.imageCounts[1:]
		}
		return float64(n), nil
	case harvestScript:
		if p.harvest == nil {
			return []any{}, nil
		}
		return p.harvest(p.current)
	case pageStateScript:
		out := make([]any, 0, len(p.state))
		for _, s := range p.state {
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.New("unexpected script")
}

func (p *fakePage) CaptureJSON(func(url string) bool) {}

func (p *fakePage) CapturedJSON() []any {
	p.mu.Lock()
	defer p.mu.Unlock()

	docs := p.captured
	p.captured = nil
	return docs
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

func (p *fakePage) gotoCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.gotos)
}

type fakeBrowser struct {
	mu     sync.Mutex
	pages  []*fakePage
	next   int
	closes int
}

func (b *fakeBrowser) NewPage() (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next >= len(b.pages) {
		return nil, errors.New("no more pages")
	}
	p := b.pages[b.next]
	b.next++
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closes++
	return nil
}

func (b *fakeBrowser) closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes > 0
}

func launcherFor(b *fakeBrowser) browser.Launcher {
	return func(context.Context) (browser.Browser, error) {
		return b, nil
	}
}

type staticRegistry []models.CompetitorConfig

func (r staticRegistry) ListActive(context.Context) ([]models.CompetitorConfig, error) {
	return r, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() CrawlSettings {
	return CrawlSettings{
		MaxScrolls:      30,
		StagnantScrolls: 3,
		ExtraScrolls:    3,
		MaxPages:        20,
	}
}

func testCrawler() *Crawler {
	return NewCrawler(testSettings(), DefaultSiteFamilies(), nil, testLogger())
}

func tile(name, price, image, link string) map[string]any {
	return map[string]any{
		"name":      name,
		"priceText": price,
		"image":     image,
		"url":       link,
	}
}

func tiles(items ...map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}

func pageNumber(rawURL, param string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(u.Query().Get(param))
	return n
}
