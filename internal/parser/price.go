package parser

import (
	"regexp"
	"strconv"
	"strings"
)

const CurrencySymbol = "₹"

var (
	currencyRe = regexp.MustCompile(`(?i)(₹|\$|€|£|¥|\bRs\.?|\bINR\b)`)
	numberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ExtractPrice returns the first number found in price text after removing
// currency markers and thousands separators. Text without a number yields 0,
// which callers treat as an unknown price.
func ExtractPrice(text string) float64 {
	if text == "" {
		return 0
	}

	cleaned := currencyRe.ReplaceAllString(text, " ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	match := numberRe.FindString(cleaned)
	if match == "" {
		return 0
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return price
}

// FormatPriceText renders a numeric price as currency-prefixed text.
func FormatPriceText(v float64) string {
	return CurrencySymbol + strconv.FormatFloat(v, 'f', -1, 64)
}
