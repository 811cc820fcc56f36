package assembly

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
	"museum-tour-workers/internal/tour/scoring"
)

// ==========================
// Test Helper Functions
// ==========================

type constantScorer struct {
	calls  atomic.Int32
	onCall func(n int32)
}

func (s *constantScorer) Score(models.Artwork, models.TourPreferences, []models.Artwork) float64 {
	n := s.calls.Add(1)
	if s.onCall != nil {
		s.onCall(n)
	}
	return 0.5
}

func numbered(ids ...int64) []models.Artwork {
	out := make([]models.Artwork, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Artwork{ID: id, MuseumID: 1, IsOnDisplay: true, Title: fmt.Sprintf("Artwork %d", id)})
	}
	return out
}

func stopIDs(stops []models.TourStop) []int64 {
	return models.ArtworkIDs(models.StopArtworks(stops))
}

func assertWellFormed(t *testing.T, stops []models.TourStop, maxStops int) {
	t.Helper()
	assert.LessOrEqual(t, len(stops), maxStops)
	seen := make(map[int64]bool)
	for i, s := range stops {
		assert.Equal(t, SequenceBase+i, s.Sequence)
		assert.False(t, seen[s.Artwork.ID], "duplicate artwork %d", s.Artwork.ID)
		seen[s.Artwork.ID] = true
	}
}

func chronologicalPool(n int) []models.Artwork {
	pool := make([]models.Artwork, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, models.Artwork{
			ID:           int64(100 - i),
			CreationDate: fmt.Sprintf("%d", 1500+(i*37)%400),
			Medium:       []string{"Oil on canvas", "Marble", "Bronze"}[i%3],
			Artist:       models.Artist{Name: fmt.Sprintf("Artist %d", i%4)},
			IsOnDisplay:  true,
			MuseumID:     1,
		})
	}
	return pool
}

// ==========================
// Tests
// ==========================

func TestAssemble_RequiredArtworkIncluded(t *testing.T) {
	a := NewAssembler(scoring.NewEngine(nil), 1, logger.NewTestLogger(t))
	prefs := models.TourPreferences{
		MuseumID:           1,
		Theme:              models.ThemeChronological,
		RequiredArtworkIDs: []int64{42},
		MinStops:           3,
		MaxStops:           5,
	}

	pool := append(chronologicalPool(10), models.Artwork{ID: 42, MuseumID: 1, IsOnDisplay: true})
	stops, err := a.Assemble(context.Background(), pool, prefs)
	require.NoError(t, err)

	assertWellFormed(t, stops, 5)
	assert.Len(t, stops, 5)
	assert.Equal(t, int64(42), stops[0].Artwork.ID)
}

func TestAssemble_RequiredBoundedByMaxStops(t *testing.T) {
	a := NewAssembler(&constantScorer{}, 1, logger.NewTestLogger(t))
	prefs := models.TourPreferences{Theme: models.ThemeCultural, RequiredArtworkIDs: []int64{3, 1, 2}, MaxStops: 2}

	stops, err := a.Assemble(context.Background(), numbered(1, 2, 3, 4), prefs)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, stopIDs(stops))
}

func TestAssemble_TiesGoToLowestID(t *testing.T) {
	a := NewAssembler(&constantScorer{}, 1, logger.NewTestLogger(t))
	prefs := models.TourPreferences{Theme: models.ThemeCultural, MaxStops: 3}

	stops, err := a.Assemble(context.Background(), numbered(9, 4, 7, 1, 5), prefs)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 5}, stopIDs(stops))
}

func TestAssemble_DuplicateCandidates(t *testing.T) {
	a := NewAssembler(&constantScorer{}, 1, logger.NewTestLogger(t))
	prefs := models.TourPreferences{Theme: models.ThemeCultural, MaxStops: 10}

	stops, err := a.Assemble(context.Background(), numbered(2, 2, 3, 3, 1), prefs)
	require.NoError(t, err)
	assertWellFormed(t, stops, 10)
	assert.Equal(t, []int64{1, 2, 3}, stopIDs(stops))
}

func TestAssemble_EmptyPool(t *testing.T) {
	a := NewAssembler(&constantScorer{}, 4, logger.NewTestLogger(t))

	stops, err := a.Assemble(context.Background(), nil, models.TourPreferences{MaxStops: 5})
	require.NoError(t, err)
	assert.Empty(t, stops)
}

func TestAssemble_ParallelScoringMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	prefs := models.TourPreferences{
		MuseumID:         1,
		Theme:            models.ThemeChronological,
		PreferredMediums: []string{"Marble"},
		MinStops:         3,
		MaxStops:         10,
	}
	pool := chronologicalPool(40)
	engine := scoring.NewEngine(nil)

	sequential, err := NewAssembler(engine, 1, logger.NewNoOpLogger()).Assemble(context.Background(), pool, prefs)
	require.NoError(t, err)
	parallel, err := NewAssembler(engine, 8, logger.NewNoOpLogger()).Assemble(context.Background(), pool, prefs)
	require.NoError(t, err)

	assert.Equal(t, stopIDs(sequential), stopIDs(parallel))
	assertWellFormed(t, parallel, 10)
}

func TestAssemble_CancelledBetweenSteps(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancels while the second step is scoring.
	scorer := &constantScorer{onCall: func(n int32) {
		if n == 6 {
			cancel()
		}
	}}

	for _, parallelism := range []int{1, 4} {
		scorer.calls.Store(0)
		ctx, cancel = context.WithCancel(context.Background())

		a := NewAssembler(scorer, parallelism, logger.NewTestLogger(t))
		_, err := a.Assemble(ctx, numbered(1, 2, 3, 4, 5), models.TourPreferences{MaxStops: 5})
		assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationCancelled), "parallelism %d", parallelism)
		cancel()
	}
}

func TestAssemble_CulturalScenario(t *testing.T) {
	corpus := candidates.NewMemoryCorpus(
		models.Artwork{ID: 1, MuseumID: 7, IsOnDisplay: true, Culture: "Japanese", Country: "Japan", CreationDate: "1831"},
		models.Artwork{ID: 2, MuseumID: 7, IsOnDisplay: true, Culture: "Japanese", Country: "Japan", CreationDate: "ca. 1760"},
		models.Artwork{ID: 3, MuseumID: 7, IsOnDisplay: true, Culture: "Chinese", Country: "China", CreationDate: "Ming dynasty"},
		models.Artwork{ID: 4, MuseumID: 7, IsOnDisplay: true, Culture: "Chinese", Country: "China"},
		models.Artwork{ID: 5, MuseumID: 7, IsOnDisplay: true, Title: "Unattributed fragment"},
		models.Artwork{ID: 6, MuseumID: 7, IsOnDisplay: true, Title: "Unattributed vessel"},
	)
	prefs := models.TourPreferences{
		MuseumID:          7,
		Theme:             models.ThemeCultural,
		PreferredCultures: []string{"Japanese"},
		MinStops:          3,
		MaxStops:          4,
	}

	log := logger.NewTestLogger(t)
	selection, err := candidates.NewSelector(corpus, nil, candidates.SelectorConfig{}, log).Select(context.Background(), prefs)
	require.NoError(t, err)

	stops, err := NewAssembler(scoring.NewEngine(nil), 4, log).Assemble(context.Background(), selection.Candidates, prefs)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(stops), 3)
	assert.LessOrEqual(t, len(stops), 4)
	assertWellFormed(t, stops, 4)
	for i, s := range stops {
		assert.Equal(t, int64(7), s.Artwork.MuseumID)
		assert.True(t, s.Artwork.IsOnDisplay)
		if i > 0 {
			assert.Greater(t, s.Sequence, stops[i-1].Sequence)
		}
	}
	assert.Contains(t, []int64{1, 2}, stops[0].Artwork.ID, "Japanese works lead a Japanese-preferred tour")
}
