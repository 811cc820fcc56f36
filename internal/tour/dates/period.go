package dates

import (
	"strconv"
	"strings"
	"time"
)

// YearRange is an inclusive range of signed years.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// ParsePeriodRange converts a period label such as "A.D. 1400-1600", "1000 B.C.-A.D. 1"
// or "1800-1900" into a year range. "present" resolves against now. ok is false when the
// label cannot be parsed, in which case callers apply no period filter.
func ParsePeriodRange(label string, now time.Time) (YearRange, bool) {
	label = strings.TrimSpace(label)

	switch {
	case label == "1000 B.C.-A.D. 1":
		return YearRange{Start: -1000, End: 1}, true
	case label == "2000-1000 B.C.":
		return YearRange{Start: -2000, End: -1000}, true
	case strings.HasPrefix(label, "A.D."):
		parts := strings.Split(strings.TrimSpace(strings.TrimPrefix(label, "A.D.")), "-")
		if len(parts) != 2 {
			return YearRange{}, false
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return YearRange{}, false
		}
		endText := strings.TrimSpace(parts[1])
		if endText == "present" {
			return YearRange{Start: start, End: now.Year()}, true
		}
		end, err := strconv.Atoi(endText)
		if err != nil {
			return YearRange{}, false
		}
		return YearRange{Start: start, End: end}, true
	}

	parts := strings.Split(label, "-")
	if len(parts) != 2 {
		return YearRange{}, false
	}
	start, err := ExtractYear(strings.TrimSpace(parts[0]))
	if err != nil {
		return YearRange{}, false
	}
	end, err := ExtractYear(strings.TrimSpace(parts[1]))
	if err != nil {
		return YearRange{}, false
	}
	return YearRange{Start: start, End: end}, true
}
