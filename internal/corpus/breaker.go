package corpus

import (
	"context"
	stderrors "errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
)

// StateListener observes breaker transitions, e.g. to export them as metrics.
type StateListener func(backend string, from, to gobreaker.State)

// BreakerCorpus guards a backend with a circuit breaker. While open, fetches fail fast
// with CORPUS_UNAVAILABLE.
type BreakerCorpus struct {
	inner   candidates.Corpus
	backend string
	cb      *gobreaker.CircuitBreaker[[]models.Artwork]
}

func NewBreakerCorpus(inner candidates.Corpus, backend string, cfg config.BreakerConfig, log logger.Logger, listener StateListener) *BreakerCorpus {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "corpus-" + backend,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Millisecond,
		Timeout:     time.Duration(cfg.Timeout) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellation says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Corpus circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			if listener != nil {
				listener(backend, from, to)
			}
		},
	}

	return &BreakerCorpus{
		inner:   inner,
		backend: backend,
		cb:      gobreaker.NewCircuitBreaker[[]models.Artwork](settings),
	}
}

func (b *BreakerCorpus) FetchBySpecification(ctx context.Context, spec candidates.Specification) ([]models.Artwork, error) {
	artworks, err := b.cb.Execute(func() ([]models.Artwork, error) {
		return b.inner.FetchBySpecification(ctx, spec)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.NewCorpusUnavailableError(b.backend, err)
	}
	return artworks, err
}

// State returns the breaker state name.
func (b *BreakerCorpus) State() string {
	return b.cb.State().String()
}
