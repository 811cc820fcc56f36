// Package assembly orders a candidate pool into tour stops.
package assembly

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
)

// SequenceBase is the sequence number of the first stop.
const SequenceBase = 0

// Scorer rates a candidate against the preferences and the stops chosen so far.
type Scorer interface {
	Score(candidate models.Artwork, prefs models.TourPreferences, selected []models.Artwork) float64
}

type Assembler struct {
	scorer      Scorer
	parallelism int
	logger      logger.Logger
}

// NewAssembler returns an assembler scoring up to parallelism candidates at once.
// Values below 2 score sequentially.
func NewAssembler(scorer Scorer, parallelism int, log logger.Logger) *Assembler {
	return &Assembler{
		scorer:      scorer,
		parallelism: parallelism,
		logger:      log,
	}
}

// Assemble places required candidates first, then repeatedly appends the best scoring
// remaining candidate until prefs.MaxStops is reached or the pool is empty. Equal scores
// go to the lowest artwork id. The result may be shorter than prefs.MinStops; sufficiency
// is the caller's decision.
func (a *Assembler) Assemble(ctx context.Context, candidates []models.Artwork, prefs models.TourPreferences) ([]models.TourStop, error) {
	pool := dedupe(candidates)
	selected := make([]models.Artwork, 0, max(prefs.MaxStops, 0))

	if len(prefs.RequiredArtworkIDs) > 0 {
		remaining := make([]models.Artwork, 0, len(pool))
		for _, c := range pool {
			if prefs.IsRequired(c.ID) && len(selected) < prefs.MaxStops {
				selected = append(selected, c)
				continue
			}
			remaining = append(remaining, c)
		}
		pool = remaining
	}

	for len(selected) < prefs.MaxStops && len(pool) > 0 {
		if ctx.Err() != nil {
			return nil, errors.NewGenerationCancelledError("")
		}

		scores, err := a.scoreAll(ctx, pool, prefs, selected)
		if err != nil {
			return nil, errors.NewGenerationCancelledError("")
		}

		best := argmax(pool, scores)
		selected = append(selected, pool[best])
		pool = slices.Delete(pool, best, best+1)
	}

	a.logger.Debug("Tour assembled", map[string]interface{}{
		"stops":      len(selected),
		"candidates": len(candidates),
		"theme":      string(prefs.Theme),
	})
	return numberStops(selected), nil
}

func (a *Assembler) scoreAll(ctx context.Context, pool []models.Artwork, prefs models.TourPreferences, selected []models.Artwork) ([]float64, error) {
	scores := make([]float64, len(pool))

	if a.parallelism < 2 || len(pool) < 2 {
		for i, c := range pool {
			scores[i] = a.scorer.Score(c, prefs, selected)
		}
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = a.scorer.Score(pool[i], prefs, selected)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// argmax returns the index of the highest score, preferring the lowest id on ties.
func argmax(pool []models.Artwork, scores []float64) int {
	best := 0
	for i := 1; i < len(pool); i++ {
		if scores[i] > scores[best] || (scores[i] == scores[best] && pool[i].ID < pool[best].ID) {
			best = i
		}
	}
	return best
}

func dedupe(candidates []models.Artwork) []models.Artwork {
	seen := make(map[int64]struct{}, len(candidates))
	out := make([]models.Artwork, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func numberStops(selected []models.Artwork) []models.TourStop {
	stops := make([]models.TourStop, len(selected))
	for i, artwork := range selected {
		stops[i] = models.TourStop{Sequence: SequenceBase + i, Artwork: artwork}
	}
	return stops
}
