// Package candidates retrieves the artwork pool for a tour, relaxing constraints tier by
// tier until the pool can fill the minimum number of stops.
package candidates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/cultural"
	"museum-tour-workers/internal/tour/dates"
)

// Tier is the deepest relaxation level a selection needed.
type Tier int

const (
	TierRequired Tier = iota
	TierIdeal
	TierThemeOnly
	TierMinimal
)

func (t Tier) String() string {
	switch t {
	case TierRequired:
		return "required"
	case TierIdeal:
		return "ideal"
	case TierThemeOnly:
		return "theme_only"
	case TierMinimal:
		return "minimal"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Selection is the merged candidate pool. Required artworks come first, in request order.
type Selection struct {
	Candidates      []models.Artwork `json:"candidates"`
	Tier            Tier             `json:"tier"`
	MissingRequired []int64          `json:"missingRequired,omitempty"`
	Sufficient      bool             `json:"sufficient"`
}

type tierSpec struct {
	tier Tier
	spec Specification
}

type SelectorConfig struct {
	CandidateLimit int
	RequireImage   bool
}

type Selector struct {
	corpus Corpus
	graph  *cultural.Graph
	config SelectorConfig
	logger logger.Logger
	now    func() time.Time
}

func NewSelector(corpus Corpus, graph *cultural.Graph, cfg SelectorConfig, log logger.Logger) *Selector {
	if graph == nil {
		graph = cultural.Default()
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	return &Selector{
		corpus: corpus,
		graph:  graph,
		config: cfg,
		logger: log,
		now:    time.Now,
	}
}

// Select fetches required artworks, then the ideal, theme-only and minimal tiers until the
// pool holds at least prefs.MinStops artworks. Corpus errors abort the selection.
func (s *Selector) Select(ctx context.Context, prefs models.TourPreferences) (Selection, error) {
	pool := newPool()
	sel := Selection{Tier: TierRequired}

	base := Specification{
		MuseumID:     prefs.MuseumID,
		OnDisplay:    true,
		RequireImage: s.config.RequireImage,
	}

	if len(prefs.RequiredArtworkIDs) > 0 {
		spec := base
		spec.IDs = prefs.RequiredArtworkIDs
		found, err := s.corpus.FetchBySpecification(ctx, spec)
		if err != nil {
			return Selection{}, err
		}
		sel.MissingRequired = pool.addRequired(prefs.RequiredArtworkIDs, found)
		if len(sel.MissingRequired) > 0 {
			s.logger.Warn("Required artworks not available", map[string]interface{}{
				"museumId":   prefs.MuseumID,
				"missingIds": sel.MissingRequired,
			})
		}
	}

	themed := base
	themed.Theme = prefs.Theme

	tiers := make([]tierSpec, 0, 3)
	if prefs.HasContentPreferences() {
		ideal := themed
		filter := s.preferenceFilter(prefs)
		ideal.Preferences = &filter
		tiers = append(tiers, tierSpec{TierIdeal, ideal})
	}
	tiers = append(tiers, tierSpec{TierThemeOnly, themed}, tierSpec{TierMinimal, base})

	for i, t := range tiers {
		if i > 0 && pool.len() >= prefs.MinStops {
			break
		}
		spec := t.spec
		spec.ExcludeIDs = pool.ids()
		spec.Limit = s.config.CandidateLimit

		found, err := s.corpus.FetchBySpecification(ctx, spec)
		if err != nil {
			return Selection{}, err
		}
		added := pool.add(found)
		sel.Tier = t.tier

		s.logger.Debug("Candidate tier fetched", map[string]interface{}{
			"tier":     t.tier.String(),
			"fetched":  len(found),
			"added":    added,
			"poolSize": pool.len(),
		})
	}

	sel.Candidates = pool.artworks
	sel.Sufficient = pool.len() >= prefs.MinStops
	return sel, nil
}

func (s *Selector) preferenceFilter(prefs models.TourPreferences) PreferenceFilter {
	filter := PreferenceFilter{
		Artists:  prefs.PreferredArtists,
		Mediums:  prefs.PreferredMediums,
		Cultures: prefs.PreferredCultures,
	}

	if len(prefs.PreferredCultures) > 0 {
		countries := make(map[string]struct{})
		for _, c := range prefs.PreferredCultures {
			for _, country := range s.graph.CountriesForCulture(c, true) {
				countries[country] = struct{}{}
			}
		}
		for country := range countries {
			filter.Countries = append(filter.Countries, country)
		}
		sort.Strings(filter.Countries)
	}

	if len(prefs.PreferredPeriods) > 0 {
		if r, ok := dates.ParsePeriodRange(prefs.PreferredPeriods[0], s.now()); ok {
			filter.Period = &r
		} else {
			s.logger.Warn("Could not parse preferred period, ignoring period filter", map[string]interface{}{
				"period": prefs.PreferredPeriods[0],
			})
		}
	}
	return filter
}

// pool merges fetched artworks, keeping the first occurrence of each id.
type pool struct {
	artworks []models.Artwork
	seen     map[int64]struct{}
}

func newPool() *pool {
	return &pool{seen: make(map[int64]struct{})}
}

func (p *pool) len() int { return len(p.artworks) }

func (p *pool) ids() []int64 {
	out := make([]int64, 0, len(p.artworks))
	for _, a := range p.artworks {
		out = append(out, a.ID)
	}
	return out
}

func (p *pool) add(artworks []models.Artwork) int {
	added := 0
	for _, a := range artworks {
		if _, ok := p.seen[a.ID]; ok {
			continue
		}
		p.seen[a.ID] = struct{}{}
		p.artworks = append(p.artworks, a)
		added++
	}
	return added
}

// addRequired adds found artworks in the order of ids and returns the ids not found.
func (p *pool) addRequired(ids []int64, found []models.Artwork) []int64 {
	byID := make(map[int64]models.Artwork, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	var missing []int64
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		p.add([]models.Artwork{a})
	}
	return missing
}
