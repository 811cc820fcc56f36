package progress

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"museum-tour-workers/internal/common/errors"
)

const (
	redisKeyPrefix = "tour:progress:"

	// maxMutateAttempts bounds optimistic retries when another writer touches the key.
	maxMutateAttempts = 5
)

// RedisStore shares progress across worker instances. Values are JSON with a TTL;
// Mutate uses WATCH/MULTI so concurrent writers to one key retry instead of clobbering.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(requestID string) string {
	return redisKeyPrefix + requestID
}

func (s *RedisStore) Create(ctx context.Context, status Status, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return errors.NewCacheFailedError("progress_create", err)
	}
	if err := s.client.Set(ctx, redisKey(status.RequestID), data, ttl).Err(); err != nil {
		return errors.NewCacheFailedError("progress_create", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, requestID string) (Status, error) {
	data, err := s.client.Get(ctx, redisKey(requestID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return Status{}, errors.NewProgressNotFoundError(requestID)
	}
	if err != nil {
		return Status{}, errors.NewCacheFailedError("progress_get", err)
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, errors.NewCacheFailedError("progress_get", err)
	}
	return status, nil
}

func (s *RedisStore) Mutate(ctx context.Context, requestID string, fn Mutation) error {
	key := redisKey(requestID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			return errors.NewProgressNotFoundError(requestID)
		}
		if err != nil {
			return errors.NewCacheFailedError("progress_mutate", err)
		}

		var status Status
		if err := json.Unmarshal(data, &status); err != nil {
			return errors.NewCacheFailedError("progress_mutate", err)
		}

		ttl, err := fn(&status)
		if err != nil {
			return err
		}

		next, err := json.Marshal(status)
		if err != nil {
			return errors.NewCacheFailedError("progress_mutate", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl > 0 {
				pipe.Set(ctx, key, next, ttl)
			} else {
				pipe.Del(ctx, key)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		var stdErr *errors.StandardError
		if err != nil && !stderrors.As(err, &stdErr) {
			return errors.NewCacheFailedError("progress_mutate", err)
		}
		return err
	}
	return errors.NewCacheFailedError("progress_mutate", redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, requestID string) error {
	if err := s.client.Del(ctx, redisKey(requestID)).Err(); err != nil {
		return errors.NewCacheFailedError("progress_delete", err)
	}
	return nil
}
