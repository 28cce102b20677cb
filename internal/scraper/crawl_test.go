package scraper

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

var (
	genericCompetitor = models.CompetitorConfig{
		Name:      "ExampleCo",
		BaseURL:   "https://shop.example.com",
		SearchURL: "https://shop.example.com/search?q={query}",
		IsActive:  true,
	}
	paginatedCompetitor = models.CompetitorConfig{
		Name:      "IKEA",
		BaseURL:   "https://www.ikea.com/in/en",
		SearchURL: "https://www.ikea.com/in/en/search/?q={query}",
		IsActive:  true,
	}
)

func names(products []models.RawProduct) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestCrawlGeneric_StopsAfterStagnantScrolls(t *testing.T) {
	page := &fakePage{
		imageCounts: []int{4, 8, 8, 8, 8},
		harvest: func(string) (any, error) {
			return tiles(tile("Dinner Set 24 Pieces", "₹2,499", "/img/a.jpg", "/products/a")), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, genericCompetitor, "https://shop.example.com/search?q=dinner")

	require.NoError(t, err)
	assert.Equal(t, 4, page.scrolls)
	assert.Equal(t, []string{"Dinner Set 24 Pieces"}, names(products))
	assert.Equal(t, 1, page.gotoCount())
}

func TestCrawlGeneric_ScrollLimit(t *testing.T) {
	counts := make([]int, 0, 40)
	for i := 1; i <= 40; i++ {
		counts = append(counts, i)
	}
	page := &fakePage{imageCounts: counts}

	_, err := testCrawler().Crawl(context.Background(), page, genericCompetitor, "https://shop.example.com/search?q=dinner")

	require.NoError(t, err)
	assert.Equal(t, 30, page.scrolls)
}

func TestCrawlGeneric_FallsBackToHTML(t *testing.T) {
	page := &fakePage{
		harvest: func(string) (any, error) { return nil, errors.New("execution context was destroyed") },
		content: `<html><body><div class="card">
			<a href="/products/casserole"><img src="/img/c.jpg" alt="Casserole 1.5L"></a><span>₹1,450</span>
		</div></body></html>`,
	}

	products, err := testCrawler().Crawl(context.Background(), page, genericCompetitor, "https://shop.example.com/search?q=casserole")

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Casserole 1.5L", products[0].Name)
	assert.Equal(t, "https://shop.example.com/products/casserole", products[0].URL)
}

func TestCrawlGeneric_NavigationError(t *testing.T) {
	page := &fakePage{gotoErr: func(string) error { return errors.New("timeout") }}

	_, err := testCrawler().Crawl(context.Background(), page, genericCompetitor, "https://shop.example.com/search?q=x")

	assert.Error(t, err)
}

// Pagination ends at the first page without net-new products. A site that
// reorders results can therefore end the crawl before later pages with new
// items are reached.
func TestCrawlPaginated_StopsOnZeroNewProducts(t *testing.T) {
	a := tile("Glass Bowl 500ml", "₹299", "/img/a.jpg", "/p/a")
	b := tile("Glass Bowl 1L", "₹399", "/img/b.jpg", "/p/b")
	c := tile("Glass Bowl 2L", "₹499", "/img/c.jpg", "/p/c")
	d := tile("Glass Bowl 3L", "₹599", "/img/d.jpg", "/p/d")

	page := &fakePage{
		harvest: func(u string) (any, error) {
			switch pageNumber(u, "page") {
			case 1:
				return tiles(a, b), nil
			case 2:
				return tiles(c), nil
			case 3:
				return tiles(c, a), nil
			default:
				return tiles(d), nil
			}
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=bowl")

	require.NoError(t, err)
	assert.Equal(t, []string{"Glass Bowl 500ml", "Glass Bowl 1L", "Glass Bowl 2L"}, names(products))
	assert.Equal(t, 3, page.gotoCount())
	for i, u := range page.gotos {
		assert.Equal(t, i+1, pageNumber(u, "page"))
		assert.Contains(t, u, "q=bowl")
	}
}

func TestCrawlPaginated_MaxPages(t *testing.T) {
	page := &fakePage{
		harvest: func(u string) (any, error) {
			n := pageNumber(u, "page")
			return tiles(tile("Storage Jar No "+strconv.Itoa(n), "₹99", "/img/j.jpg", "/p/jar-"+strconv.Itoa(n))), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=jar")

	require.NoError(t, err)
	assert.Len(t, products, 20)
	assert.Equal(t, 20, page.gotoCount())
}

func TestCrawlPaginated_ChallengeOnFirstPageAborts(t *testing.T) {
	page := &fakePage{
		title: func(string) string { return "Just a moment..." },
		harvest: func(string) (any, error) {
			return tiles(tile("Never Seen", "₹1", "/img/x.jpg", "/p/x")), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=x")

	assert.ErrorIs(t, err, ErrChallenge)
	assert.Empty(t, products)
	assert.Equal(t, 1, page.gotoCount())
}

func TestCrawlPaginated_ChallengeLaterKeepsEarlierPages(t *testing.T) {
	page := &fakePage{
		title: func(u string) string {
			if pageNumber(u, "page") == 2 {
				return "Attention Required! | Cloudflare"
			}
			return "Search"
		},
		harvest: func(u string) (any, error) {
			n := pageNumber(u, "page")
			return tiles(tile("Tumbler "+strconv.Itoa(n), "₹120", "/img/t.jpg", "/p/t"+strconv.Itoa(n))), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=tumbler")

	require.NoError(t, err)
	assert.Equal(t, []string{"Tumbler 1"}, names(products))
	assert.Equal(t, 2, page.gotoCount())
}

func TestCrawlPaginated_ChallengeClearsAfterWait(t *testing.T) {
	calls := 0
	page := &fakePage{
		title: func(string) string {
			calls++
			if calls == 1 {
				return "Just a moment..."
			}
			return "Search"
		},
		harvest: func(u string) (any, error) {
			if pageNumber(u, "page") == 1 {
				return tiles(tile("Mug Set of 6", "₹450", "/img/m.jpg", "/p/mug")), nil
			}
			return tiles(), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=mug")

	require.NoError(t, err)
	assert.Equal(t, []string{"Mug Set of 6"}, names(products))
}

func TestCrawlPaginated_NavigationErrorKeepsEarlierPages(t *testing.T) {
	page := &fakePage{
		gotoErr: func(u string) error {
			if pageNumber(u, "page") == 2 {
				return errors.New("net::ERR_TIMED_OUT")
			}
			return nil
		},
		harvest: func(string) (any, error) {
			return tiles(tile("Serving Tray", "₹799", "/img/s.jpg", "/p/tray")), nil
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=tray")

	require.NoError(t, err)
	assert.Equal(t, []string{"Serving Tray"}, names(products))
	assert.Equal(t, 2, page.gotoCount())
}

func TestCrawlPaginated_MergesStructuredData(t *testing.T) {
	page := &fakePage{
		harvest: func(string) (any, error) {
			return tiles(tile("Dinner Plate", "₹150", "/img/p.jpg", "/p/plate")), nil
		},
		captured: []any{map[string]any{
			"products": []any{map[string]any{
				"name":  "Glass Bowl Set",
				"image": "/img/b.jpg",
				"price": 499.0,
				"url":   "/p/bowl",
			}},
		}},
		state: []string{
			`{"props":{"items":[{"title":"Steel Tumbler","thumbnail":"https://cdn.example.com/t.jpg","sellingPrice":"₹199","slug":"steel-tumbler"}]}}`,
			`not json`,
		},
	}

	products, err := testCrawler().Crawl(context.Background(), page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=kitchen")

	require.NoError(t, err)
	require.Equal(t, []string{"Dinner Plate", "Glass Bowl Set", "Steel Tumbler"}, names(products))
	assert.Equal(t, "₹499", products[1].PriceText)
	assert.Equal(t, "https://www.ikea.com/in/en/products/steel-tumbler", products[2].URL)
	assert.Equal(t, 2, page.gotoCount())
}

func TestCrawl_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := &fakePage{
		gotoErr: func(string) error {
			cancel()
			return context.Canceled
		},
	}

	_, err := testCrawler().Crawl(ctx, page, paginatedCompetitor, "https://www.ikea.com/in/en/search/?q=x")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithPageParam(t *testing.T) {
	got, err := withPageParam("https://www.pepperfry.com/search?q=sofa&p=9", "p", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://www.pepperfry.com/search?p=2&q=sofa", got)

	got, err = withPageParam("https://shop.example.com/search?q=sofa", "", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/search?page=3&q=sofa", got)
}

func TestPageStateString(t *testing.T) {
	assert.Equal(t, "challenge_detected", PageChallengeDetected.String())
	assert.Equal(t, "closed", PageClosed.String())
}
