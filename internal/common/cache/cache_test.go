package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museum-tour-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func counting(value string, calls *atomic.Int32) ComputeFunc {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		return value, nil
	}
}

// ==========================
// Tests
// ==========================

func TestGetOrCompute_MissThenHit(t *testing.T) {
	mr, client := setupRedis(t)
	c := New("description", client, logger.NewTestLogger(t))
	ctx := context.Background()
	var calls atomic.Int32

	v, hit, err := c.GetOrCompute(ctx, "k1", time.Hour, counting("A tour of Edo prints", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "A tour of Edo prints", v)

	stored, err := mr.Get("tour:cache:description:k1")
	require.NoError(t, err)
	assert.Equal(t, "A tour of Edo prints", stored)
	assert.Equal(t, time.Hour, mr.TTL("tour:cache:description:k1"))

	v, hit, err = c.GetOrCompute(ctx, "k1", time.Hour, counting("other", &calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "A tour of Edo prints", v)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, c.Invalidate(ctx, "k1"))
	assert.False(t, mr.Exists("tour:cache:description:k1"))
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	c := New("description", client, logger.NewTestLogger(t))

	_, _, err := c.GetOrCompute(context.Background(), "k1", time.Hour, func(ctx context.Context) (string, error) {
		return "", assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists("tour:cache:description:k1"))
}

func TestGetOrCompute_RedisFailureFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New("description", client, logger.NewTestLogger(t))
	var calls atomic.Int32

	mock.ExpectGet("tour:cache:description:k1").SetErr(fmt.Errorf("connection refused"))
	mock.ExpectSet("tour:cache:description:k1", "fresh", time.Minute).SetErr(fmt.Errorf("connection refused"))

	v, hit, err := c.GetOrCompute(context.Background(), "k1", time.Minute, counting("fresh", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCompute_CollapsesConcurrentCalls(t *testing.T) {
	c := New("tour", nil, logger.NewNoOpLogger())
	release := make(chan struct{})
	var calls, entered atomic.Int32

	compute := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Add(1)
			v, _, err := c.GetOrCompute(context.Background(), "same", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	assert.Eventually(t, func() bool { return entered.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrCompute_CancelledCallerDoesNotFailOthers(t *testing.T) {
	_, client := setupRedis(t)
	c := New("description", client, logger.NewTestLogger(t))
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	compute := func(ctx context.Context) (string, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		select {
		case <-release:
			return "Stops along the Silk Road", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctxA, "shared", time.Minute, compute)
		errA <- err
	}()
	<-started

	type result struct {
		value string
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrCompute(context.Background(), "shared", time.Minute, compute)
		resB <- result{value: v, err: err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	// Give the second caller time to join the flight before it finishes.
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "Stops along the Silk Road", r.value)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), calls.Load())

	v, hit, err := c.GetOrCompute(context.Background(), "shared", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Stops along the Silk Road", v)
}

func TestGetOrComputeJSON_UndecodableEntryRecomputed(t *testing.T) {
	mr, client := setupRedis(t)
	c := New("tour", client, logger.NewTestLogger(t))
	require.NoError(t, mr.Set("tour:cache:tour:k", `{"stops":"not-a-list"}`))

	type payload struct {
		Stops []string `json:"stops"`
	}
	var calls atomic.Int32
	compute := func(ctx context.Context) (payload, error) {
		calls.Add(1)
		return payload{Stops: []string{"first", "second"}}, nil
	}

	got, hit, err := GetOrComputeJSON(context.Background(), c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"first", "second"}, got.Stops)
	assert.Equal(t, int32(1), calls.Load())

	stored, err := mr.Get("tour:cache:tour:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stops":["first","second"]}`, stored)
}

func TestGetOrComputeJSON(t *testing.T) {
	_, client := setupRedis(t)
	c := New("tour", client, logger.NewTestLogger(t))

	type payload struct {
		Name  string  `json:"name"`
		Stops []int64 `json:"stops"`
	}
	var calls atomic.Int32
	compute := func(ctx context.Context) (payload, error) {
		calls.Add(1)
		return payload{Name: "CULTURAL Tour", Stops: []int64{3, 1}}, nil
	}

	first, hit, err := GetOrComputeJSON(context.Background(), c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := GetOrComputeJSON(context.Background(), c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}
