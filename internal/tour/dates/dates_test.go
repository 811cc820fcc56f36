package dates

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "museum-tour-workers/internal/common/errors"
)

func TestExtractYear(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		// plain and circa
		{"plain year", "1885", 1885},
		{"circa", "circa 1885", 1885},
		{"ca.", "ca. 1885", 1885},
		{"c.", "c. 1885", 1885},
		{"about", "about 1920", 1920},
		{"approximately", "approximately 1900", 1900},
		{"circa CE", "ca. 1500 CE", 1500},
		{"circa A.D.", "c. 1500 A.D.", 1500},

		// centuries
		{"15th century", "15th century", 1450},
		{"19th century", "19th century", 1850},
		{"20th century", "20th century", 1950},
		{"early century", "early 15th century", 1425},
		{"late century", "late 15th century", 1475},
		{"mid century", "mid-15th century", 1450},
		{"century range BCE", "3rd-2nd century BCE", -250},
		{"cross era centuries", "1st century BCE - 1st century CE", -50},

		// BCE forms
		{"BCE", "500 BCE", -500},
		{"BC", "500 BC", -500},
		{"B.C.", "500 B.C.", -500},
		{"B.C no trailing dot", "500 B.C", -500},
		{"no space BC", "500BC", -500},
		{"no space BCE", "500BCE", -500},
		{"spaced B. C.", "500 B. C.", -500},
		{"circa BCE", "ca. 500 BCE", -500},

		// BCE ranges
		{"BCE range", "500-400 BCE", -500},
		{"B.C. range en dash", "2575–2520 B.C.", -2575},
		{"circa B.C. range", "ca. 2575–2520 B.C.", -2575},
		{"circa BCE range", "circa 500-400 BCE", -500},

		// cross era
		{"B.C. to A.D.", "30 B.C.–A.D. 364", -30},
		{"BCE to CE", "30 BCE–10 CE", -30},
		{"BC to AD", "100 BC - 100 AD", -100},

		// CE ranges
		{"hyphen range", "1910-1920", 1910},
		{"en dash range", "1910–1920", 1910},
		{"em dash range", "1910—1920", 1910},
		{"to range", "1910 to 1920", 1910},
		{"abbreviated range", "1910-15", 1910},
		{"open range", "1910-present", 1910},
		{"slash", "1876/1910", 1876},
		{"circa range", "ca. 1500-1600", 1500},

		// millennia
		{"millennium BCE", "3rd millennium BCE", -2500},
		{"millennium range BCE", "5th–3rd millennium BCE", -4500},
		{"first millennium", "1st millennium", 500},
		{"early millennium range", "early 5th–3rd millennium BCE", -4700},
		{"late millennium", "late 2nd millennium BCE", -1300},
		{"mid millennium", "mid 2nd millennium", 1500},
		{"first half", "first half of the 1st millennium", 250},
		{"end of", "end of the 2nd millennium BC", -1250},

		// whitespace and case
		{"padded", "  CIRCA 1885 ", 1885},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractYear(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractYear_Failures(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		message string
	}{
		{"empty", "", "Date string is null"},
		{"blank", "   ", "Date string is null"},
		{"invalid", "invalid date", "Could not extract year from: invalid date"},
		{"not a year", "not a year", "Could not extract year from: not a year"},
		{"letters and digits", "abc123", "Could not extract year from: abc123"},
		{"century without number", "some century", "Could not parse century from: some century"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractYear(tt.in)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDateParseFailed))

			var stdErr *apperrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.message, stdErr.Message)
		})
	}
}

func TestTryExtractYear(t *testing.T) {
	year, ok := TryExtractYear("1885")
	assert.True(t, ok)
	assert.Equal(t, 1885, year)

	_, ok = TryExtractYear("unknown")
	assert.False(t, ok)
}

func TestMapYearToPeriod(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{-1500, "2000-1000 B.C."},
		{-1000, "2000-1000 B.C."},
		{-500, "1000 B.C.-A.D. 1"},
		{1, "1000 B.C.-A.D. 1"},
		{250, "A.D. 1-500"},
		{750, "A.D. 500-1000"},
		{1200, "A.D. 1000-1400"},
		{1500, "A.D. 1400-1600"},
		{1700, "A.D. 1600-1800"},
		{1850, "A.D. 1800-1900"},
		{1900, "A.D. 1800-1900"},
		{1950, "A.D. 1900-present"},
		{2000, "A.D. 1900-present"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapYearToPeriod(tt.year), "year %d", tt.year)
	}
}

func TestMapYearToPeriod_LabelsAreKnownPeriods(t *testing.T) {
	known := make(map[string]bool)
	for _, p := range Periods() {
		known[p] = true
	}
	for year := -3000; year <= 2100; year += 25 {
		assert.True(t, known[MapYearToPeriod(year)], "year %d", year)
	}
}

func TestCompareYears(t *testing.T) {
	assert.Equal(t, -1, CompareYears(-500, 1500, true))
	assert.Equal(t, 1, CompareYears(-500, 1500, false))
	assert.Equal(t, 0, CompareYears(1500, 1500, false))
	assert.Equal(t, 1, CompareYears(1920, 1800, true))
}

func TestSortByCreationDate(t *testing.T) {
	inputs := []string{"1920", "ca. 2575–2520 B.C.", "15th century", "ca. 500 BCE", "30 B.C.–A.D. 364", "1800-1900"}

	years := make([]int, 0, len(inputs))
	for _, in := range inputs {
		y, err := ExtractYear(in)
		require.NoError(t, err)
		years = append(years, y)
	}
	assert.Equal(t, []int{1920, -2575, 1450, -500, -30, 1800}, years)

	sort.SliceStable(years, func(i, j int) bool { return CompareYears(years[i], years[j], true) < 0 })
	assert.Equal(t, []int{-2575, -500, -30, 1450, 1800, 1920}, years)

	sort.SliceStable(years, func(i, j int) bool { return CompareYears(years[i], years[j], false) < 0 })
	assert.Equal(t, []int{1920, 1800, 1450, -30, -500, -2575}, years)
}

func TestHasEraMarker(t *testing.T) {
	assert.True(t, HasEraMarker("late Edo, 19th century"))
	assert.True(t, HasEraMarker("Dynasty 18, BCE"))
	assert.True(t, HasEraMarker("AD"))
	assert.False(t, HasEraMarker("ad"))
	assert.False(t, HasEraMarker("Edo period"))
}

func TestParsePeriodRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		label string
		want  YearRange
		ok    bool
	}{
		{"1000 B.C.-A.D. 1", YearRange{-1000, 1}, true},
		{"2000-1000 B.C.", YearRange{-2000, -1000}, true},
		{"A.D. 1400-1600", YearRange{1400, 1600}, true},
		{"A.D. 1900-present", YearRange{1900, 2024}, true},
		{"1800-1900", YearRange{1800, 1900}, true},
		{"A.D. abc-1600", YearRange{}, false},
		{"A.D. 1400", YearRange{}, false},
		{"Edo period", YearRange{}, false},
		{"500-400", YearRange{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParsePeriodRange(tt.label, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, label := range Periods() {
		r, ok := ParsePeriodRange(label, now)
		assert.True(t, ok, label)
		assert.LessOrEqual(t, r.Start, r.End, label)
	}
}

func TestYearRange_Contains(t *testing.T) {
	r := YearRange{Start: -1000, End: 1}
	assert.True(t, r.Contains(-1000))
	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(2))
}
