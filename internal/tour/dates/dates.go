// Package dates turns free-text museum creation dates into signed years.
// Negative years are BCE.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "museum-tour-workers/internal/common/errors"
)

const (
	circaPrefix = `(?:circa|ca\.?|c\.?|about|approximately)\s*`
	bcSuffix    = `(?:b\.?c\.?e?\.?|bce|bc)\s*`
	adPrefix    = `(?:a\.?d\.?|ce)\s*`
	dash        = `[\-–—]`
	ordinal     = `(?:st|nd|rd|th)`
	modernYear  = `(1[0-9]{3}|20[0-2][0-9])`
)

// Patterns run against trimmed, lowercased input and are tried in declaration order.
var (
	circaBCRangePattern = regexp.MustCompile(circaPrefix + `(\d+)` + dash + `\d+\s*` + bcSuffix)
	bcRangePattern      = regexp.MustCompile(`(\d+)` + dash + `\d+\s*` + bcSuffix)
	bcPattern           = regexp.MustCompile(`(\d+)\s*` + bcSuffix)
	bcNoSpacePattern    = regexp.MustCompile(`(\d+)(bce|bc)`)
	bcSpacedPattern     = regexp.MustCompile(`(\d+)\s*b\.\s*c\.\s*`)

	crossEraPattern = regexp.MustCompile(`(\d+)\s*` + bcSuffix + dash + adPrefix + `\d+`)

	circaCEPattern     = regexp.MustCompile(circaPrefix + modernYear)
	adPattern          = regexp.MustCompile(adPrefix + `(\d+)`)
	cePattern          = regexp.MustCompile(`(\d+)\s*` + adPrefix)
	adRangePattern     = regexp.MustCompile(adPrefix + `(\d+)` + dash + `(\d+|present)`)
	abbreviatedPattern = regexp.MustCompile(modernYear + dash + `(\d{1,2})`)
	yearPattern        = regexp.MustCompile(`\b` + modernYear + `\b`)
	yearRangePattern   = regexp.MustCompile(`(\d+)(?:\s*(?:bce|bc|ce|ad)?)?` + dash + `(\d+)(?:\s*(?:bce|bc|ce|ad)?)?`)

	centuryRangePattern = regexp.MustCompile(`(\d+)` + ordinal + dash + `\d+` + ordinal + `\s+century`)
	earlyCenturyPattern = regexp.MustCompile(`early\s+(\d+)` + ordinal + `\s+century`)
	lateCenturyPattern  = regexp.MustCompile(`late\s+(\d+)` + ordinal + `\s+century`)
	centuryPattern      = regexp.MustCompile(`(\d+)` + ordinal + `\s+century`)

	eraMarkerPattern = regexp.MustCompile(`century|BCE|CE|BC|AD`)
)

// offsetRule maps a century or millennium phrasing onto an offset inside that span.
type offsetRule struct {
	pattern *regexp.Regexp
	offset  int
}

var millenniumRules = []offsetRule{
	{regexp.MustCompile(`early\s+(\d+)` + ordinal + `?` + dash + `\d+` + ordinal + `?\s+millennium`), 300},
	{regexp.MustCompile(`early\s+(\d+)` + ordinal + `?\s+millennium`), 300},
	{regexp.MustCompile(`late\s+(\d+)` + ordinal + `?\s+millennium`), 700},
	{regexp.MustCompile(`(?:mid|middle of)\s+(?:the\s+)?(\d+)` + ordinal + `?\s+millennium`), 500},
	{regexp.MustCompile(`(?:first half|beginning) of(?: the)? (\d+)` + ordinal + `?\s+millennium`), 250},
	{regexp.MustCompile(`(?:second half|end) of(?: the)? (\d+)` + ordinal + `?\s+millennium`), 750},
	{regexp.MustCompile(`(\d+)` + ordinal + `?` + dash + `\d+` + ordinal + `?\s+millennium\s*(?:bce|bc|ce|ad)?`), 500},
	{regexp.MustCompile(`(\d+)` + ordinal + `?\s+millennium\s*(?:bce|bc|ce|ad)?`), 500},
}

// ExtractYear parses a creation date such as "ca. 1885", "15th century" or
// "30 B.C.–A.D. 364" and returns a representative year.
func ExtractYear(text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, apperrors.NewDateParseFailedError("Date string is null")
	}
	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, p := range []*regexp.Regexp{
		circaBCRangePattern,
		bcRangePattern,
		bcPattern,
		bcNoSpacePattern,
		bcSpacedPattern,
	} {
		if year, ok := firstGroup(p, normalized); ok {
			return -year, nil
		}
	}

	if strings.Contains(normalized, "century") {
		return centuryYear(normalized)
	}
	if strings.Contains(normalized, "millennium") {
		return millenniumYear(normalized)
	}

	if year, ok := firstGroup(crossEraPattern, normalized); ok {
		return -year, nil
	}

	for _, p := range []*regexp.Regexp{
		circaCEPattern,
		adPattern,
		cePattern,
		adRangePattern,
		abbreviatedPattern,
		yearPattern,
	} {
		if year, ok := firstGroup(p, normalized); ok {
			return year, nil
		}
	}

	if year, ok := firstGroup(yearRangePattern, normalized); ok {
		if strings.Contains(normalized, "bce") || strings.Contains(normalized, "bc") {
			return -year, nil
		}
		return year, nil
	}

	return 0, apperrors.NewDateParseFailedError(fmt.Sprintf("Could not extract year from: %s", text))
}

// TryExtractYear returns the parsed year and whether parsing succeeded.
func TryExtractYear(text string) (int, bool) {
	year, err := ExtractYear(text)
	return year, err == nil
}

func hasBCMarker(normalized string) bool {
	return strings.Contains(normalized, "bce") ||
		strings.Contains(normalized, "bc") ||
		strings.Contains(normalized, "b.c")
}

var centuryRules = []offsetRule{
	{centuryRangePattern, 50},
	{earlyCenturyPattern, 25},
	{lateCenturyPattern, 75},
	{centuryPattern, 50},
}

func centuryYear(normalized string) (int, error) {
	bc := hasBCMarker(normalized)
	for _, rule := range centuryRules {
		century, ok := firstGroup(rule.pattern, normalized)
		if !ok {
			continue
		}
		year := (century-1)*100 + rule.offset
		if bc {
			return -year, nil
		}
		return year, nil
	}
	return 0, apperrors.NewDateParseFailedError(fmt.Sprintf("Could not parse century from: %s", normalized))
}

func millenniumYear(normalized string) (int, error) {
	bc := hasBCMarker(normalized)
	for _, rule := range millenniumRules {
		m, ok := firstGroup(rule.pattern, normalized)
		if !ok {
			continue
		}
		if bc {
			return -(m*1000 - rule.offset), nil
		}
		return (m-1)*1000 + rule.offset, nil
	}
	return 0, apperrors.NewDateParseFailedError(fmt.Sprintf("Could not parse millennium from: %s", normalized))
}

// firstGroup returns the first capture group of the leftmost match as an int.
func firstGroup(p *regexp.Regexp, s string) (int, bool) {
	m := p.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// HasEraMarker reports whether the raw text mentions a century or an era abbreviation.
// The check is case-sensitive.
func HasEraMarker(text string) bool {
	return eraMarkerPattern.MatchString(text)
}

// MapYearToPeriod buckets a year into the fixed collection period labels.
func MapYearToPeriod(year int) string {
	switch {
	case year <= -1000:
		return "2000-1000 B.C."
	case year <= 1:
		return "1000 B.C.-A.D. 1"
	case year <= 500:
		return "A.D. 1-500"
	case year <= 1000:
		return "A.D. 500-1000"
	case year <= 1400:
		return "A.D. 1000-1400"
	case year <= 1600:
		return "A.D. 1400-1600"
	case year <= 1800:
		return "A.D. 1600-1800"
	case year <= 1900:
		return "A.D. 1800-1900"
	default:
		return "A.D. 1900-present"
	}
}

// Periods lists every label MapYearToPeriod can return, oldest first.
func Periods() []string {
	return []string{
		"2000-1000 B.C.",
		"1000 B.C.-A.D. 1",
		"A.D. 1-500",
		"A.D. 500-1000",
		"A.D. 1000-1400",
		"A.D. 1400-1600",
		"A.D. 1600-1800",
		"A.D. 1800-1900",
		"A.D. 1900-present",
	}
}

// CompareYears orders years chronologically; descending order inverts the result.
func CompareYears(a, b int, ascending bool) int {
	result := 0
	switch {
	case a < b:
		result = -1
	case a > b:
		result = 1
	}
	if !ascending {
		return -result
	}
	return result
}
