// Package parser turns heterogeneous page data into product candidates:
// price text, embedded JSON state and static HTML snapshots.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Tile heuristics shared by the in-page harvester script and HarvestHTML.
const (
	MaxAncestorLevels = 8
	MaxTileImages     = 5
	MaxTileLinks      = 10
	MaxTileText       = 2000
	MinHrefLength     = 10
	MinNameLength     = 3
	MaxNameLength     = 200

	// NavLinkPattern matches hrefs of navigation and utility links. It is
	// compiled case-insensitively both here and inside the page.
	NavLinkPattern = `(^#|^javascript:|^mailto:|^tel:|/cart|/checkout|/login|/signin|/sign-in|/register|/account|/wishlist|/category|/categories|/search|/blog|/help|/contact|/about|/polic(y|ies)|/faq|/track|/stores?(/|$))`

	// PricePattern matches a currency-prefixed number.
	PricePattern = `(?:₹|Rs\.?|INR|\$|€|£)\s*\d[\d,]*(?:\.\d+)?`

	// NameSelector lists title-like descendants tried after the image alt text.
	NameSelector = `[class*="title"], [class*="Title"], [class*="name"], [class*="Name"], h1, h2, h3, h4, h5, h6`
)

// CodeFragments mark text that leaked from scripts or stylesheets.
var CodeFragments = []string{"{", "}", ".product", "var ", "function", "document.", "<script", "</"}

var (
	navLinkRe    = regexp.MustCompile(`(?i)` + NavLinkPattern)
	tilePriceRe  = regexp.MustCompile(`(?i)` + PricePattern)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ValidName reports whether a derived product name is usable.
func ValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return false
	}
	for _, f := range CodeFragments {
		if strings.Contains(name, f) {
			return false
		}
	}
	return true
}

// IsNavLink reports whether an href points at navigation rather than a product.
func IsNavLink(href string) bool {
	return len(href) < MinHrefLength || navLinkRe.MatchString(href)
}
