package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	QueryPlaceholder  = "{query}"
	DefaultMaxResults = 50
	DefaultTimeout    = 30 * time.Second
)

// Selectors holds the CSS selector hints configured for a competitor.
type Selectors struct {
	Container string `json:"container" yaml:"container"`
	Name      string `json:"name" yaml:"name"`
	Brand     string `json:"brand" yaml:"brand"`
	Price     string `json:"price" yaml:"price"`
	Image     string `json:"image" yaml:"image"`
	URL       string `json:"url" yaml:"url"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Container: ".product-item, .product-card, [data-product]",
		Name:      ".product-title, .product-name, h3, h2",
		Brand:     ".brand, .product-brand",
		Price:     ".price, .product-price, [class*='price']",
		Image:     "img",
		URL:       "a[href]",
	}
}

// CompetitorConfig is one competitor site as stored in the registry.
type CompetitorConfig struct {
	Name       string    `json:"name" yaml:"name"`
	BaseURL    string    `json:"baseUrl" yaml:"base_url"`
	SearchURL  string    `json:"searchUrl" yaml:"search_url"`
	Selectors  Selectors `json:"selectors" yaml:"selectors"`
	IsActive   bool      `json:"isActive" yaml:"is_active"`
	MaxResults int       `json:"maxResults" yaml:"max_results"`
	// Timeout is the navigation timeout in milliseconds.
	Timeout int `json:"timeout" yaml:"timeout"`
}

// WithDefaults fills empty selector hints with the defaults.
func (c CompetitorConfig) WithDefaults() CompetitorConfig {
	d := DefaultSelectors()
	s := &c.Selectors
	if s.Container == "" {
		s.Container = d.Container
	}
	if s.Name == "" {
		s.Name = d.Name
	}
	if s.Brand == "" {
		s.Brand = d.Brand
	}
	if s.Price == "" {
		s.Price = d.Price
	}
	if s.Image == "" {
		s.Image = d.Image
	}
	if s.URL == "" {
		s.URL = d.URL
	}
	return c
}

func (c *CompetitorConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *CompetitorConfig) Limit() int {
	if c.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return c.MaxResults
}

// BuildSearchURL substitutes the query into the search URL template. The
// placeholder is path-escaped before the '?' and query-escaped after it. A
// template without the {query} placeholder gets its q parameter set to the
// query; other parameters are kept.
func (c *CompetitorConfig) BuildSearchURL(query string) (string, error) {
	if strings.Contains(c.SearchURL, QueryPlaceholder) {
		path, rawQuery, hasQuery := strings.Cut(c.SearchURL, "?")
		built := strings.ReplaceAll(path, QueryPlaceholder, url.PathEscape(query))
		if hasQuery {
			built += "?" + strings.ReplaceAll(rawQuery, QueryPlaceholder, url.QueryEscape(query))
		}
		return built, nil
	}

	u, err := url.Parse(c.SearchURL)
	if err != nil {
		return "", fmt.Errorf("invalid search url %q: %w", c.SearchURL, err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *CompetitorConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("competitor name is required")
	}

	raw, err := c.BuildSearchURL("test")
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("competitor %s: invalid search url: %w", c.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("competitor %s: search url must be absolute, got %q", c.Name, c.SearchURL)
	}

	return nil
}
