package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-comparison-scraper/internal/models"
)

// HarvestHTML applies the product tile heuristics to a static HTML snapshot.
// It finds image-bearing links, walks up to the smallest ancestor that also
// carries a price, and extracts one candidate per tile.
func HarvestHTML(html, baseURL string) ([]models.RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var products []models.RawProduct
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if IsNavLink(href) {
			return
		}
		if a.Find("img").Length() == 0 {
			return
		}

		tile := findTile(a)
		if tile == nil {
			return
		}

		link := ResolveURL(href, baseURL)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}

		img := a.Find("img").First()
		image := ResolveURL(imageSource(img), baseURL)
		if image == "" {
			image = ResolveURL(imageSource(tile.Find("img").First()), baseURL)
		}
		if image == "" {
			return
		}

		name := tileName(a, img, tile)
		if !ValidName(name) {
			return
		}

		seen[link] = struct{}{}
		products = append(products, models.RawProduct{
			Name:      name,
			PriceText: strings.TrimSpace(tilePriceRe.FindString(CleanText(tile.Text()))),
			Image:     image,
			URL:       link,
		})
	})

	return products, nil
}

// findTile returns the first element, starting at the anchor, whose subtree
// holds a price and stays within the image, link and text bounds of a tile.
func findTile(a *goquery.Selection) *goquery.Selection {
	el := a
	for level := 0; level < MaxAncestorLevels && el.Length() > 0; level, el = level+1, el.Parent() {
		text := CleanText(el.Text())
		n := utf8.RuneCountInString(text)
		if n == 0 || n >= MaxTileText {
			continue
		}
		if !tilePriceRe.MatchString(text) {
			continue
		}
		if el.Find("img").Length() > MaxTileImages {
			continue
		}
		if el.Find("a").Length() > MaxTileLinks {
			continue
		}
		return el
	}
	return nil
}

func imageSource(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	candidates := []string{
		img.AttrOr("src", ""),
		img.AttrOr("data-src", ""),
		img.AttrOr("data-lazy-src", ""),
	}
	if srcset := img.AttrOr("srcset", img.AttrOr("data-srcset", "")); srcset != "" {
		first := strings.TrimSpace(strings.Split(srcset, ",")[0])
		if fields := strings.Fields(first); len(fields) > 0 {
			candidates = append(candidates, fields[0])
		}
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && !IsDataURI(c) {
			return c
		}
	}
	return ""
}

func tileName(a, img, tile *goquery.Selection) string {
	alt := CleanText(img.AttrOr("alt", ""))
	if n := utf8.RuneCountInString(alt); n >= MinNameLength && n <= MaxNameLength {
		return alt
	}

	var name string
	tile.Find(NameSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		t := CleanText(el.Text())
		if t == "" || strings.Contains(t, CurrencySymbol) || strings.Contains(t, "{") {
			return true
		}
		name = t
		return false
	})
	if name != "" {
		return name
	}

	return CleanText(a.AttrOr("title", ""))
}
