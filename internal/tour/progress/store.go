package progress

import (
	"context"
	"time"
)

// Store holds statuses keyed by request id. Mutate runs atomically per key. Missing or
// expired keys return a PROGRESS_NOT_FOUND error.
type Store interface {
	Create(ctx context.Context, status Status, ttl time.Duration) error
	Get(ctx context.Context, requestID string) (Status, error)
	Mutate(ctx context.Context, requestID string, fn Mutation) error
	Delete(ctx context.Context, requestID string) error
}
