package parser

import (
	"net/url"
	"strings"
)

func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "data:")
}

func isAbsolute(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ResolveURL resolves an image or link reference against baseURL. Data URIs
// and unparseable references resolve to "".
func ResolveURL(ref, baseURL string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || IsDataURI(ref) {
		return ""
	}
	if isAbsolute(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return ""
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(rel).String()
}

// ResolveProductURL resolves a product link taken from embedded JSON, where
// a bare value is usually a slug rather than a relative path.
func ResolveProductURL(ref, baseURL string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if isAbsolute(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}

	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	return base + "/products/" + ref
}
