package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "museum-tour-workers/internal/common/errors"
)

func TestArtist_HasReasonableLifespan(t *testing.T) {
	tests := []struct {
		name   string
		artist Artist
		want   bool
	}{
		{"regular", Artist{BirthDate: "1853", DeathDate: "1890"}, true},
		{"exactly 120", Artist{BirthDate: "1800", DeathDate: "1920"}, true},
		{"too long", Artist{BirthDate: "1800", DeathDate: "1921"}, false},
		{"death before birth", Artist{BirthDate: "1890", DeathDate: "1853"}, false},
		{"before 1000", Artist{BirthDate: "950", DeathDate: "1000"}, false},
		{"non numeric", Artist{BirthDate: "ca. 1853", DeathDate: "1890"}, false},
		{"missing", Artist{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.artist.HasReasonableLifespan())
		})
	}
}

func TestArtist_DisplayName(t *testing.T) {
	assert.Equal(t, UnknownArtist, Artist{}.DisplayName())
	assert.Equal(t, UnknownArtist, Artist{Name: "  "}.DisplayName())
	assert.False(t, Artist{Name: "Unknown Artist"}.Known())
	assert.Equal(t, "Hokusai", Artist{Name: " Hokusai "}.DisplayName())
}

func TestParseTheme(t *testing.T) {
	for _, in := range []string{"CULTURAL", "cultural", "artist-focused", "Artist_Focused", "chronological"} {
		_, err := ParseTheme(in)
		assert.NoError(t, err, in)
	}

	_, err := ParseTheme("SURPRISE")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePreferencesInvalid))
}

func TestTourPreferences_Validate(t *testing.T) {
	valid := TourPreferences{MuseumID: 1, Theme: ThemeCultural}.WithDefaults(DefaultMinStops, DefaultMaxStops)
	require.NoError(t, valid.Validate())
	assert.Equal(t, 3, valid.MinStops)
	assert.Equal(t, 10, valid.MaxStops)

	tests := []struct {
		name  string
		prefs TourPreferences
	}{
		{"missing museum", TourPreferences{Theme: ThemeCultural, MinStops: 3, MaxStops: 5}},
		{"bad theme", TourPreferences{MuseumID: 1, Theme: "X", MinStops: 3, MaxStops: 5}},
		{"min below three", TourPreferences{MuseumID: 1, Theme: ThemeCultural, MinStops: 2, MaxStops: 5}},
		{"max below min", TourPreferences{MuseumID: 1, Theme: ThemeCultural, MinStops: 5, MaxStops: 4}},
		{"too many required", TourPreferences{
			MuseumID: 1, Theme: ThemeCultural, MinStops: 3, MaxStops: 3,
			RequiredArtworkIDs: []int64{1, 2, 3, 4},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePreferencesInvalid))
		})
	}
}

func TestTourPreferences_WithDefaultsKeepsMaxAboveMin(t *testing.T) {
	p := TourPreferences{MuseumID: 1, Theme: "cultural", MinStops: 12}.WithDefaults(3, 10)
	assert.Equal(t, 12, p.MaxStops)
	assert.Equal(t, ThemeCultural, p.Theme)
}

func TestTourName(t *testing.T) {
	at := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "CULTURAL Tour - 2024-03-09", TourName(ThemeCultural, at))
}
