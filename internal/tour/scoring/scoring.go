// Package scoring ranks candidate artworks against visitor preferences and the
// previously chosen stop.
package scoring

import (
	"slices"
	"strings"

	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/cultural"
	"museum-tour-workers/internal/tour/dates"
)

// Component weights.
const (
	ThemeWeight      = 0.3
	PreferenceWeight = 0.4
	FlowWeight       = 0.3
)

// Preference bonuses. They are summed without a cap.
const (
	ArtistBonus  = 0.15
	PeriodBonus  = 0.2
	MediumBonus  = 0.3
	CultureBonus = 0.4
)

var periodFamilies = [][]string{
	{"early renaissance", "high renaissance", "late renaissance", "northern renaissance"},
	{"early baroque", "high baroque", "late baroque", "dutch golden age"},
	{"post-impressionism", "art nouveau", "art deco", "modernism"},
	{"romanesque", "gothic", "early medieval", "late medieval"},
}

// Breakdown holds the weighted components of a score.
type Breakdown struct {
	Theme      float64 `json:"theme"`
	Preference float64 `json:"preference"`
	Flow       float64 `json:"flow"`
}

func (b Breakdown) Total() float64 {
	return b.Theme + b.Preference + b.Flow
}

// Engine scores artworks. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	graph *cultural.Graph
}

func NewEngine(graph *cultural.Graph) *Engine {
	if graph == nil {
		graph = cultural.Default()
	}
	return &Engine{graph: graph}
}

// Score returns how well candidate fits as the next stop after stops.
func (e *Engine) Score(candidate models.Artwork, prefs models.TourPreferences, stops []models.Artwork) float64 {
	return e.Breakdown(candidate, prefs, stops).Total()
}

func (e *Engine) Breakdown(candidate models.Artwork, prefs models.TourPreferences, stops []models.Artwork) Breakdown {
	b := Breakdown{
		Theme:      e.ThemeScore(candidate, prefs.Theme) * ThemeWeight,
		Preference: PreferenceScore(candidate, prefs) * PreferenceWeight,
	}
	if len(stops) > 0 {
		b.Flow = e.FlowScore(stops[len(stops)-1], candidate, prefs.Theme) * FlowWeight
	}
	return b
}

// ThemeScore rates how much material the artwork offers for the tour theme.
func (e *Engine) ThemeScore(a models.Artwork, theme models.Theme) float64 {
	switch theme {
	case models.ThemeChronological:
		return chronologicalThemeScore(a)
	case models.ThemeArtistFocused:
		if a.Artist.Known() {
			return 0.2
		}
		return 0.1
	case models.ThemeCultural:
		if a.Culture == "" {
			return 0.1
		}
		related := len(e.graph.CountriesForCulture(a.Culture, true))
		return 0.2 + float64(min(related, 3))*0.01
	default:
		return 0
	}
}

func chronologicalThemeScore(a models.Artwork) float64 {
	if a.CreationDate == "" {
		return 0.1
	}
	if _, ok := dates.TryExtractYear(a.CreationDate); ok {
		return 0.2
	}
	if dates.HasEraMarker(a.CreationDate) {
		return 0.15
	}
	return 0.1
}

// PreferenceScore sums the bonuses for each explicit preference the artwork satisfies.
func PreferenceScore(a models.Artwork, prefs models.TourPreferences) float64 {
	score := 0.0
	if a.Artist.Known() && slices.Contains(prefs.PreferredArtists, a.Artist.Name) {
		score += ArtistBonus
	}
	if slices.Contains(prefs.PreferredPeriods, a.CreationDate) {
		score += PeriodBonus
	}
	if a.Medium != "" && slices.Contains(prefs.PreferredMediums, a.Medium) {
		score += MediumBonus
	}
	if a.Culture != "" && slices.Contains(prefs.PreferredCultures, a.Culture) {
		score += CultureBonus
	}
	return score
}

// FlowScore rates the transition from previous to current under the theme.
func (e *Engine) FlowScore(previous, current models.Artwork, theme models.Theme) float64 {
	switch theme {
	case models.ThemeChronological:
		return chronologicalFlow(previous, current)
	case models.ThemeArtistFocused:
		return artistFlow(previous.Artist, current.Artist)
	case models.ThemeCultural:
		if previous.Culture == "" || current.Culture == "" {
			return 0.1
		}
		return e.graph.Relationship(previous.Culture, current.Culture)
	default:
		return 0
	}
}

func chronologicalFlow(previous, current models.Artwork) float64 {
	if previous.CreationDate == "" || current.CreationDate == "" {
		return 0.1
	}

	prevYear, errPrev := dates.ExtractYear(previous.CreationDate)
	curYear, errCur := dates.ExtractYear(current.CreationDate)
	if errPrev != nil || errCur != nil {
		if similarPeriods(previous.CreationDate, current.CreationDate) {
			return 0.15
		}
		return 0.1
	}

	diff := curYear - prevYear
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff > 0 && diff < 50:
		return 0.2
	case diff > 0 && diff < 100:
		return 0.15
	default:
		return 0.1
	}
}

func similarPeriods(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	for _, family := range periodFamilies {
		if slices.Contains(family, a) && slices.Contains(family, b) {
			return true
		}
	}
	return false
}

func artistFlow(previous, current models.Artist) float64 {
	if !previous.Known() || !current.Known() {
		return 0.1
	}
	if previous.Name == current.Name {
		return 0.2
	}
	if contemporaries(previous, current) {
		return 0.15
	}
	if previous.Nationality != "" && previous.Nationality == current.Nationality {
		return 0.15
	}
	if shareTag(previous.Tags, current.Tags) {
		return 0.15
	}
	return 0.1
}

// contemporaries reports whether two artists with plausible lifespans were alive at the same time.
func contemporaries(a, b models.Artist) bool {
	if !a.HasReasonableLifespan() || !b.HasReasonableLifespan() {
		return false
	}
	aBirth, aDeath, _ := a.Lifespan()
	bBirth, bDeath, _ := b.Lifespan()
	return bBirth <= aDeath && bDeath >= aBirth
}

func shareTag(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
