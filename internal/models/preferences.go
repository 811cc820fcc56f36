package models

import (
	"fmt"
	"strings"

	apperrors "museum-tour-workers/internal/common/errors"
)

type Theme string

const (
	ThemeChronological Theme = "CHRONOLOGICAL"
	ThemeArtistFocused Theme = "ARTIST_FOCUSED"
	ThemeCultural      Theme = "CULTURAL"
)

// ParseTheme accepts the theme name in any case, with dashes or underscores.
func ParseTheme(s string) (Theme, error) {
	normalized := Theme(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch normalized {
	case ThemeChronological, ThemeArtistFocused, ThemeCultural:
		return normalized, nil
	}
	return "", apperrors.NewPreferencesInvalidError(fmt.Sprintf("unknown theme %q", s))
}

func (t Theme) Valid() bool {
	_, err := ParseTheme(string(t))
	return err == nil
}

const (
	DefaultMinStops = 3
	DefaultMaxStops = 10
)

type TourPreferences struct {
	MuseumID           int64    `json:"museumId"`
	Theme              Theme    `json:"theme"`
	RequiredArtworkIDs []int64  `json:"requiredArtworkIds,omitempty"`
	PreferredArtists   []string `json:"preferredArtists,omitempty"`
	PreferredMediums   []string `json:"preferredMediums,omitempty"`
	PreferredCultures  []string `json:"preferredCultures,omitempty"`
	PreferredPeriods   []string `json:"preferredPeriods,omitempty"`
	MinStops           int      `json:"minStops,omitempty"`
	MaxStops           int      `json:"maxStops,omitempty"`
}

// WithDefaults fills zero stop bounds and normalizes the theme name.
func (p TourPreferences) WithDefaults(minStops, maxStops int) TourPreferences {
	if p.MinStops == 0 {
		p.MinStops = minStops
	}
	if p.MaxStops == 0 {
		p.MaxStops = maxStops
		if p.MaxStops < p.MinStops {
			p.MaxStops = p.MinStops
		}
	}
	if theme, err := ParseTheme(string(p.Theme)); err == nil {
		p.Theme = theme
	}
	return p
}

// Validate checks the invariants a generation request must satisfy.
func (p TourPreferences) Validate() error {
	if p.MuseumID <= 0 {
		return apperrors.NewPreferencesInvalidError("museumId is required")
	}
	if _, err := ParseTheme(string(p.Theme)); err != nil {
		return err
	}
	if p.MinStops < 3 {
		return apperrors.NewPreferencesInvalidError(fmt.Sprintf("minStops must be at least 3, got %d", p.MinStops))
	}
	if p.MaxStops < p.MinStops {
		return apperrors.NewPreferencesInvalidError(
			fmt.Sprintf("maxStops (%d) must be >= minStops (%d)", p.MaxStops, p.MinStops))
	}
	if len(p.RequiredArtworkIDs) > p.MaxStops {
		return apperrors.NewPreferencesInvalidError(
			fmt.Sprintf("%d required artworks exceed maxStops %d", len(p.RequiredArtworkIDs), p.MaxStops))
	}
	return nil
}

// HasContentPreferences reports whether any artist, medium, culture or period preference is set.
func (p TourPreferences) HasContentPreferences() bool {
	return len(p.PreferredArtists) > 0 ||
		len(p.PreferredMediums) > 0 ||
		len(p.PreferredCultures) > 0 ||
		len(p.PreferredPeriods) > 0
}

// IsRequired reports whether id is one of the required artwork ids.
func (p TourPreferences) IsRequired(id int64) bool {
	for _, r := range p.RequiredArtworkIDs {
		if r == id {
			return true
		}
	}
	return false
}
