package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/maltedev/price-comparison-scraper/internal/models"
)

var (
	jsonNameKeys       = []string{"name", "title", "productName", "product_name"}
	jsonImageKeys      = []string{"image", "images", "thumbnail", "media", "mainImage"}
	jsonImageInnerKeys = []string{"url", "src", "path", "link"}
	jsonPriceKeys      = []string{"price", "sellingPrice", "selling_price", "salePrice", "sale_price", "mrp", "listPrice", "list_price"}
	jsonPriceInnerKeys = []string{"value", "amount", "current", "final", "min"}
	jsonURLKeys        = []string{"url", "link", "href", "productUrl", "product_url", "slug", "handle"}
	jsonBrandKeys      = []string{"brand", "brandName", "brand_name", "vendor"}
)

// DecodeJSON decodes a JSON document into the generic tree walked by
// CollectProductsFromJSON. Numbers are kept as json.Number.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	return v, nil
}

type jsonHarvester struct {
	competitor string
	baseURL    string
	seen       map[string]struct{}
	products   []models.ScrapedProduct
}

// CollectProductsFromJSON walks an arbitrary JSON tree depth-first and
// returns every product-shaped object it finds. An object is product-shaped
// when it has a name, an image and a non-null price field; a price that
// cannot be parsed yields 0 and PriceNotAvailable. Other objects and arrays
// are searched recursively.
func CollectProductsFromJSON(root any, competitor, baseURL string) []models.ScrapedProduct {
	h := &jsonHarvester{
		competitor: competitor,
		baseURL:    baseURL,
		seen:       make(map[string]struct{}),
	}
	h.visit(root)
	return h.products
}

func (h *jsonHarvester) visit(node any) {
	switch v := node.(type) {
	case map[string]any:
		if p, ok := h.product(v); ok {
			key := p.DedupeKey()
			if _, dup := h.seen[key]; !dup {
				h.seen[key] = struct{}{}
				h.products = append(h.products, p)
			}
			return
		}
		for _, k := range sortedKeys(v) {
			h.visit(v[k])
		}
	case []any:
		for _, item := range v {
			h.visit(item)
		}
	}
}

func (h *jsonHarvester) product(obj map[string]any) (models.ScrapedProduct, bool) {
	name := CleanText(firstString(obj, jsonNameKeys))
	if name == "" {
		return models.ScrapedProduct{}, false
	}

	var image string
	for _, k := range jsonImageKeys {
		if raw := unwrapImage(obj[k]); raw != "" {
			image = ResolveURL(raw, h.baseURL)
			break
		}
	}
	if image == "" {
		return models.ScrapedProduct{}, false
	}

	var (
		amount   float64
		hasPrice bool
	)
	for _, k := range jsonPriceKeys {
		if v, ok := obj[k]; ok && v != nil {
			amount = coercePrice(v)
			hasPrice = true
			break
		}
	}
	if !hasPrice {
		return models.ScrapedProduct{}, false
	}

	priceText := models.PriceNotAvailable
	if amount > 0 {
		priceText = FormatPriceText(amount)
	} else {
		amount = 0
	}

	return models.ScrapedProduct{
		Name:       name,
		BrandName:  CleanText(brandOf(obj)),
		Price:      amount,
		PriceText:  priceText,
		Image:      image,
		URL:        ResolveProductURL(firstString(obj, jsonURLKeys), h.baseURL),
		Competitor: h.competitor,
	}, true
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func unwrapImage(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if IsDataURI(s) {
			return ""
		}
		return s
	case []any:
		for _, item := range t {
			if s := unwrapImage(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, k := range jsonImageInnerKeys {
			if s := unwrapImage(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func coercePrice(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return ExtractPrice(t)
	case map[string]any:
		for _, k := range jsonPriceInnerKeys {
			if inner, ok := t[k]; ok && inner != nil {
				return coercePrice(inner)
			}
		}
	}
	return 0
}

func brandOf(obj map[string]any) string {
	for _, k := range jsonBrandKeys {
		switch b := obj[k].(type) {
		case string:
			if b != "" {
				return b
			}
		case map[string]any:
			if s := firstString(b, []string{"name", "title"}); s != "" {
				return s
			}
		}
	}
	return ""
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
