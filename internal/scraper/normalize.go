package scraper

import (
	"github.com/maltedev/price-comparison-scraper/internal/models"
	"github.com/maltedev/price-comparison-scraper/internal/parser"
)

// Normalize turns raw candidates into listings for cfg: prices are parsed,
// links and images made absolute, unusable candidates dropped, duplicates
// removed and the result capped at the competitor's limit.
func Normalize(raw []models.RawProduct, cfg models.CompetitorConfig) []models.ScrapedProduct {
	limit := cfg.Limit()
	seen := make(map[string]struct{}, len(raw))
	out := make([]models.ScrapedProduct, 0, min(len(raw), limit))

	for _, r := range raw {
		if len(out) >= limit {
			break
		}

		name := parser.CleanText(r.Name)
		if !parser.ValidName(name) {
			continue
		}
		image := parser.ResolveURL(r.Image, cfg.BaseURL)
		if image == "" {
			continue
		}

		priceText := parser.CleanText(r.PriceText)
		price := parser.ExtractPrice(priceText)
		if priceText == "" {
			priceText = models.PriceNotAvailable
		}

		p := models.ScrapedProduct{
			Name:       name,
			BrandName:  parser.CleanText(r.Brand),
			Price:      price,
			PriceText:  priceText,
			Image:      image,
			URL:        parser.ResolveURL(r.URL, cfg.BaseURL),
			Competitor: cfg.Name,
		}

		key := p.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	return out
}
