// Package quota enforces a per-visitor daily tour generation limit.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
)

// DailyQuota counts generations per visitor and UTC day with INCR on a day-scoped key.
type DailyQuota struct {
	client redis.UniversalClient
	limit  int
	logger logger.Logger
	now    func() time.Time
}

// NewDailyQuota returns a quota of limit generations per day. A limit of zero disables it.
func NewDailyQuota(client redis.UniversalClient, limit int, log logger.Logger) *DailyQuota {
	return &DailyQuota{
		client: client,
		limit:  limit,
		logger: log,
		now:    time.Now,
	}
}

func (q *DailyQuota) key(visitorID string, day time.Time) string {
	return fmt.Sprintf("tour:quota:%s:%s", visitorID, day.Format("2006-01-02"))
}

// Acquire records one generation for the visitor and fails with GENERATION_LIMIT_EXCEEDED
// once the day's count passes the limit. Rejected attempts still count.
func (q *DailyQuota) Acquire(ctx context.Context, visitorID string) (used int, err error) {
	if q.limit <= 0 || q.client == nil {
		return 0, nil
	}

	now := q.now().UTC()
	key := q.key(visitorID, now)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

	var incr *redis.IntCmd
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, endOfDay)
		return nil
	})
	if err != nil {
		return 0, errors.NewCacheFailedError("quota_acquire", err)
	}

	used = int(incr.Val())
	if used > q.limit {
		q.logger.Warn("Daily generation limit reached", map[string]interface{}{
			"visitorId": visitorID,
			"limit":     q.limit,
			"used":      used,
		})
		return used, errors.NewGenerationLimitExceededError(visitorID, q.limit)
	}
	return used, nil
}
