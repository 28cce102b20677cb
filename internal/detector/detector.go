// Package detector guesses CSS selectors for a new competitor's search
// results page. Its output is a suggestion for whoever configures the
// competitor and is never applied automatically.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/models"
)

const (
	minContainers = 3
	sampleSize    = 5
)

var (
	containerSelectors = []string{
		"[data-product]",
		"[data-product-id]",
		".product-item",
		".product-card",
		".product",
		".product-tile",
		".product-grid-item",
		".grid-product",
		".card-wrapper",
		"li.item",
		".item-product",
		"[class*='product-card']",
	}
	priceSelectors = []string{
		".price",
		".product-price",
		"[class*='price']",
		"[class*='Price']",
		".amount",
		".money",
	}
	nameSelectors = []string{
		".product-title",
		".product-name",
		"[class*='title']",
		"[class*='name']",
		"h2",
		"h3",
		"h4",
	}
	brandSelectors = []string{
		".brand",
		".product-brand",
		"[class*='brand']",
		"[class*='vendor']",
	}

	currencyTextRe = regexp.MustCompile(`(₹|Rs\.?|INR|\$|€|£)\s*\d`)
	plainClassRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

type Detector struct {
	launch  browser.Launcher
	settle  time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

func New(launch browser.Launcher, settle, timeout time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = models.DefaultTimeout
	}
	return &Detector{
		launch:  launch,
		settle:  settle,
		timeout: timeout,
		logger:  logger.With("component", "detector"),
	}
}

// Detect loads searchURL in a browser of its own and analyses the rendered
// markup. It returns nil without error when no repeating product container
// can be found.
func (d *Detector) Detect(ctx context.Context, searchURL string) (*models.DetectedSelectors, error) {
	b, err := d.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()
	stop := context.AfterFunc(ctx, func() { b.Close() })
	defer stop()

	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := page.Goto(searchURL, d.timeout); err != nil {
		return nil, err
	}

	if d.settle > 0 {
		timer := time.NewTimer(d.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	detected, err := Analyze(html)
	if err != nil {
		return nil, err
	}
	if detected == nil {
		d.logger.Info("no product container found", "url", searchURL)
		return nil, nil
	}

	d.logger.Info("selectors detected", "url", searchURL, "container", detected.ProductContainer, "confidence", detected.Confidence)
	return detected, nil
}

// Analyze infers selectors from a rendered HTML document.
func Analyze(html string) (*models.DetectedSelectors, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	container, count := bestContainer(doc)
	if count < minContainers {
		container, count = mostFrequentClass(doc)
	}
	if count < minContainers {
		return nil, nil
	}

	samples := doc.Find(container).Slice(0, min(count, sampleSize))

	result := &models.DetectedSelectors{
		ProductContainer: container,
		ProductPrice:     firstMatching(samples, priceSelectors, hasDigit),
		ProductName:      firstMatching(samples, nameSelectors, hasText),
		ProductBrand:     firstMatching(samples, brandSelectors, hasText),
		SampleSize:       samples.Length(),
		DetectedAt:       time.Now().UTC(),
	}
	if result.ProductPrice == "" {
		result.ProductPrice = currencyLeafSelector(samples)
	}
	if samples.Find("img").Length() > 0 {
		result.ProductImage = "img"
	}
	if samples.Find("a[href]").Length() > 0 || samples.Filter("a[href]").Length() > 0 {
		result.ProductURL = "a[href]"
	}

	result.Confidence = confidence(count, result)
	return result, nil
}

func bestContainer(doc *goquery.Document) (string, int) {
	best, bestCount := "", 0
	for _, sel := range containerSelectors {
		if n := doc.Find(sel).Length(); n > bestCount {
			best, bestCount = sel, n
		}
	}
	return best, bestCount
}

// mostFrequentClass histograms the first class of every div and returns the
// most common one. Ties go to the class seen first.
func mostFrequentClass(doc *goquery.Document) (string, int) {
	counts := make(map[string]int)
	var order []string

	doc.Find("div[class]").Each(func(_ int, s *goquery.Selection) {
		fields := strings.Fields(s.AttrOr("class", ""))
		if len(fields) == 0 || !plainClassRe.MatchString(fields[0]) {
			return
		}
		if counts[fields[0]] == 0 {
			order = append(order, fields[0])
		}
		counts[fields[0]]++
	})

	best, bestCount := "", 0
	for _, class := range order {
		if counts[class] > bestCount {
			best, bestCount = class, counts[class]
		}
	}
	if best == "" {
		return "", 0
	}
	return "div." + best, bestCount
}

func firstMatching(samples *goquery.Selection, selectors []string, accept func(string) bool) string {
	for _, sel := range selectors {
		found := false
		samples.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if accept(strings.TrimSpace(s.Text())) {
				found = true
				return false
			}
			return true
		})
		if found {
			return sel
		}
	}
	return ""
}

// currencyLeafSelector walks leaf elements of the samples looking for
// currency-bearing text and builds a tag.class selector for the first hit.
func currencyLeafSelector(samples *goquery.Selection) string {
	var selector string
	samples.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || !currencyTextRe.MatchString(s.Text()) {
			return true
		}
		tag := goquery.NodeName(s)
		if fields := strings.Fields(s.AttrOr("class", "")); len(fields) > 0 && plainClassRe.MatchString(fields[0]) {
			selector = tag + "." + fields[0]
		} else {
			selector = tag
		}
		return false
	})
	return selector
}

func confidence(containers int, d *models.DetectedSelectors) int {
	score := 0
	switch {
	case containers >= 5:
		score += 30
	case containers >= 3:
		score += 20
	}
	if d.ProductPrice != "" {
		score += 25
	}
	if d.ProductName != "" {
		score += 20
	}
	if d.ProductBrand != "" {
		score += 15
	}
	if d.ProductImage != "" {
		score += 10
	}
	return min(score, 100)
}

func hasText(s string) bool {
	return s != ""
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
