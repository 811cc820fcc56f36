package progress

import (
	"context"
	"math"
	"time"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
)

const (
	InitialStage   = "Starting tour generation..."
	CancelledStage = "Tour generation cancelled"
)

// TrackerConfig holds entry lifetimes. EntryTTL bounds pending, running and failed
// entries. CompletedTTL keeps completed entries queryable; zero evicts them on completion.
type TrackerConfig struct {
	EntryTTL     time.Duration
	CompletedTTL time.Duration
}

// Tracker drives each request through Pending, Running, then Completed or Failed.
type Tracker struct {
	store  Store
	config TrackerConfig
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(store Store, cfg TrackerConfig, log logger.Logger) *Tracker {
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 10 * time.Minute
	}
	return &Tracker{
		store:  store,
		config: cfg,
		logger: log,
		now:    time.Now,
	}
}

// Initialize registers a pending request at progress 0, replacing any previous entry.
func (t *Tracker) Initialize(ctx context.Context, requestID, visitorID string) error {
	now := t.now().UTC()
	return t.store.Create(ctx, Status{
		RequestID: requestID,
		VisitorID: visitorID,
		State:     StatePending,
		Stage:     InitialStage,
		StartedAt: now,
		UpdatedAt: now,
	}, t.config.EntryTTL)
}

// Update moves the request to Running, or to Completed when progress is 1. Progress
// outside [0, 1] is rejected rather than clamped.
func (t *Tracker) Update(ctx context.Context, requestID string, progress float64, stage string) error {
	if math.IsNaN(progress) || progress < 0 || progress > 1 {
		return errors.NewProgressOutOfRangeError(progress)
	}

	return t.store.Mutate(ctx, requestID, func(s *Status) (time.Duration, error) {
		if s.State.Terminal() {
			return 0, errors.NewProgressTransitionInvalidError(requestID, string(s.State), string(StateRunning))
		}

		s.Progress = progress
		s.Stage = stage
		s.UpdatedAt = t.now().UTC()

		if progress == 1 {
			s.State = StateCompleted
			t.logger.Debug("Generation completed", map[string]interface{}{
				"requestId": requestID,
				"retainFor": t.config.CompletedTTL.String(),
			})
			return t.config.CompletedTTL, nil
		}

		s.State = StateRunning
		return t.config.EntryTTL, nil
	})
}

// Fail marks the request failed. Failed entries stay queryable for EntryTTL so the
// visitor can read the error message.
func (t *Tracker) Fail(ctx context.Context, requestID, message string) error {
	return t.store.Mutate(ctx, requestID, func(s *Status) (time.Duration, error) {
		if s.State.Terminal() {
			return 0, errors.NewProgressTransitionInvalidError(requestID, string(s.State), string(StateFailed))
		}

		s.State = StateFailed
		s.Progress = 1
		s.HasError = true
		s.ErrorMessage = message
		s.UpdatedAt = t.now().UTC()
		return t.config.EntryTTL, nil
	})
}

// Status returns the entry only to its owner. Any other visitor gets PROGRESS_NOT_FOUND.
func (t *Tracker) Status(ctx context.Context, requestID, visitorID string) (Status, error) {
	s, err := t.store.Get(ctx, requestID)
	if err != nil {
		return Status{}, err
	}
	if s.VisitorID != visitorID {
		t.logger.Warn("Progress requested by non-owner", map[string]interface{}{
			"requestId": requestID,
		})
		return Status{}, errors.NewProgressNotFoundError(requestID)
	}
	return s, nil
}

// Remove drops the entry regardless of state.
func (t *Tracker) Remove(ctx context.Context, requestID string) error {
	return t.store.Delete(ctx, requestID)
}
