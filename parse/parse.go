// Package parse holds the text-level extraction helpers shared by the
// retailer scrapers: price token parsing, set-code recognition, and the
// median selection used to resist outlier listings.
package parse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	priceToken = regexp.MustCompile(`[\d,]+\.?\d*`)
	digits     = regexp.MustCompile(`\d+`)

	// SetCode matches the set identifiers that appear in listing titles,
	// e.g. "OP-05", "EB-01", "PRB-01".
	SetCode = regexp.MustCompile(`(OP-\d{2}|EB-\d{2}|PRB-\d{2})`)
)

// Price extracts the first numeric price token from text, tolerating
// currency symbols and thousands separators.
func Price(text string) (float64, bool) {
	match := priceToken.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// PriceNear extracts a price token that follows one of the given context
// words, for pages where the wanted figure is only identifiable by its
// surrounding text.
func PriceNear(text string, contexts ...string) (float64, bool) {
	if len(contexts) == 0 {
		return 0, false
	}
	pattern := `(?i)(?:` + strings.Join(contexts, "|") + `)[^\$]*\$([\d,]+\.?\d*)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, false
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Yen extracts an integer yen amount, stripping every non-digit rune.
func Yen(text string) (float64, bool) {
	match := digits.FindAllString(text, -1)
	if len(match) == 0 {
		return 0, false
	}
	value, err := strconv.Atoi(strings.Join(match, ""))
	if err != nil {
		return 0, false
	}
	return float64(value), true
}

// NormalizeSetCode upper-cases and trims a set code for lookups.
func NormalizeSetCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ExtractSetCode pulls the first recognized set code out of a listing title.
func ExtractSetCode(title string) (string, bool) {
	match := SetCode.FindString(strings.ToUpper(title))
	if match == "" {
		return "", false
	}
	return match, true
}

// HasRegionMarker reports whether a listing title identifies the item as
// the Japanese printing.
func HasRegionMarker(title string) bool {
	upper := strings.ToUpper(title)
	return strings.Contains(upper, "JAPANESE") ||
		strings.Contains(upper, "JPN") ||
		strings.Contains(upper, "JP")
}

// InRange reports whether price falls inside the (exclusive) sanity bounds.
// A zero bound disables that side of the check.
func InRange(price, min, max float64) bool {
	if min > 0 && price <= min {
		return false
	}
	if max > 0 && price >= max {
		return false
	}
	return true
}

// Median returns the lower-median of prices: sort ascending, take the
// element at index len/2. The input slice is not modified.
func Median(prices []float64) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2], true
}
