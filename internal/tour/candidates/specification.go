package candidates

import (
	"context"
	"slices"

	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/dates"
)

// Corpus is the read-only view of the artwork collection. Implementations return matches
// ordered by ascending id and truncated to Specification.Limit when it is positive.
type Corpus interface {
	FetchBySpecification(ctx context.Context, spec Specification) ([]models.Artwork, error)
}

// PreferenceFilter narrows candidates to the visitor's explicit preferences. Empty lists
// do not filter. Cultures and Countries combine with OR.
type PreferenceFilter struct {
	Artists   []string         `json:"artists,omitempty"`
	Mediums   []string         `json:"mediums,omitempty"`
	Cultures  []string         `json:"cultures,omitempty"`
	Countries []string         `json:"countries,omitempty"`
	Period    *dates.YearRange `json:"period,omitempty"`
}

// Specification is a backend-neutral artwork predicate. All set clauses combine with AND.
type Specification struct {
	MuseumID     int64             `json:"museumId"`
	OnDisplay    bool              `json:"onDisplay"`
	RequireImage bool              `json:"requireImage"`
	Theme        models.Theme      `json:"theme,omitempty"`
	Preferences  *PreferenceFilter `json:"preferences,omitempty"`
	IDs          []int64           `json:"ids,omitempty"`
	ExcludeIDs   []int64           `json:"excludeIds,omitempty"`
	Limit        int               `json:"limit,omitempty"`
}

// Matches evaluates the specification against a single artwork. SQL and search backends
// translate the same clauses.
func (s Specification) Matches(a models.Artwork) bool {
	if s.MuseumID != 0 && a.MuseumID != s.MuseumID {
		return false
	}
	if s.OnDisplay && !a.IsOnDisplay {
		return false
	}
	if s.RequireImage && !a.HasImage() {
		return false
	}
	if len(s.IDs) > 0 && !slices.Contains(s.IDs, a.ID) {
		return false
	}
	if slices.Contains(s.ExcludeIDs, a.ID) {
		return false
	}
	if !MatchesTheme(s.Theme, a) {
		return false
	}
	if s.Preferences != nil && !s.Preferences.Matches(a) {
		return false
	}
	return true
}

// MatchesTheme applies the theme prefilter: chronological tours need a creation date,
// artist tours need an artist birth date and nationality, cultural tours need a culture.
func MatchesTheme(theme models.Theme, a models.Artwork) bool {
	switch theme {
	case models.ThemeChronological:
		return a.CreationDate != ""
	case models.ThemeArtistFocused:
		return a.Artist.BirthDate != "" && a.Artist.Nationality != ""
	case models.ThemeCultural:
		return a.Culture != ""
	default:
		return true
	}
}

func (p PreferenceFilter) Matches(a models.Artwork) bool {
	if len(p.Artists) > 0 && !slices.Contains(p.Artists, a.Artist.Name) {
		return false
	}
	if len(p.Mediums) > 0 && !slices.Contains(p.Mediums, a.Medium) {
		return false
	}
	if p.Period != nil {
		year, ok := dates.TryExtractYear(a.CreationDate)
		if !ok || !p.Period.Contains(year) {
			return false
		}
	}
	if len(p.Cultures) > 0 || len(p.Countries) > 0 {
		if !slices.Contains(p.Cultures, a.Culture) && !slices.Contains(p.Countries, a.Country) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter constrains nothing.
func (p PreferenceFilter) IsEmpty() bool {
	return len(p.Artists) == 0 && len(p.Mediums) == 0 && len(p.Cultures) == 0 &&
		len(p.Countries) == 0 && p.Period == nil
}
