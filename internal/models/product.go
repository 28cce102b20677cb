package models

import (
	"time"
)

const PriceNotAvailable = "Price not available"

// RawProduct is a product candidate as extracted from a page, before
// normalisation. Fields are plain strings so the value can cross the
// in-page script boundary as JSON.
type RawProduct struct {
	Name      string `json:"name"`
	Brand     string `json:"brand,omitempty"`
	PriceText string `json:"priceText"`
	Image     string `json:"image"`
	URL       string `json:"url,omitempty"`
}

// ScrapedProduct is a normalised listing tagged with the competitor it came from.
type ScrapedProduct struct {
	Name       string  `json:"name"`
	BrandName  string  `json:"brandName,omitempty"`
	Price      float64 `json:"price"`
	PriceText  string  `json:"priceText"`
	Image      string  `json:"image"`
	URL        string  `json:"url,omitempty"`
	Competitor string  `json:"competitor"`
}

// DedupeKey identifies a listing within one competitor's result set.
func (p *ScrapedProduct) DedupeKey() string {
	if p.URL != "" {
		return "url:" + p.URL
	}
	return "ni:" + p.Name + "|" + p.Image
}

// HasPrice reports whether a numeric price could be derived.
func (p *ScrapedProduct) HasPrice() bool {
	return p.Price > 0
}

// DetectedSelectors is the advisory output of selector auto-detection.
type DetectedSelectors struct {
	ProductContainer string    `json:"productContainer"`
	ProductName      string    `json:"productName"`
	ProductBrand     string    `json:"productBrand"`
	ProductPrice     string    `json:"productPrice"`
	ProductImage     string    `json:"productImage"`
	ProductURL       string    `json:"productUrl"`
	Confidence       int       `json:"confidence"`
	SampleSize       int       `json:"sampleSize"`
	DetectedAt       time.Time `json:"detectedAt"`
}
