// internal/workers/tour/get-tour-progress/handler_test.go
package gettourprogress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/tour/progress"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       time.Second,
	}
}

// trackerReader adapts a tracker to the ProgressReader the handler consumes.
type trackerReader struct {
	*progress.Tracker
}

func (r trackerReader) Progress(ctx context.Context, requestID, visitorID string) (progress.Status, error) {
	return r.Status(ctx, requestID, visitorID)
}

func setupRedisTracker(t *testing.T) (*progress.Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tracker := progress.NewTracker(progress.NewRedisStore(client), progress.TrackerConfig{EntryTTL: time.Minute}, logger.NewTestLogger(t))
	return tracker, mr
}

// ==========================
// Execute Tests
// ==========================

func TestExecute(t *testing.T) {
	tracker, _ := setupRedisTracker(t)
	ctx := context.Background()
	h := NewHandler(createTestConfig(), trackerReader{tracker}, nil, logger.NewTestLogger(t))

	require.NoError(t, tracker.Initialize(ctx, "req-1", "v1"))
	require.NoError(t, tracker.Update(ctx, "req-1", 0.2, "Selecting artworks..."))

	tests := []struct {
		name  string
		input Input
		want  Output
	}{
		{
			name:  "owner sees running progress",
			input: Input{RequestID: "req-1", VisitorID: "v1"},
			want:  Output{Found: true, State: "RUNNING", Progress: 0.2, Stage: "Selecting artworks..."},
		},
		{
			name:  "other visitor sees nothing",
			input: Input{RequestID: "req-1", VisitorID: "v2"},
			want:  Output{Found: false},
		},
		{
			name:  "unknown request",
			input: Input{RequestID: "missing", VisitorID: "v1"},
			want:  Output{Found: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := h.Execute(ctx, &tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *output)
		})
	}
}

func TestExecute_FailedGeneration(t *testing.T) {
	tracker, _ := setupRedisTracker(t)
	ctx := context.Background()
	h := NewHandler(createTestConfig(), trackerReader{tracker}, nil, logger.NewTestLogger(t))

	require.NoError(t, tracker.Initialize(ctx, "req-1", "v1"))
	require.NoError(t, tracker.Fail(ctx, "req-1", "Not enough artworks"))

	output, err := h.Execute(ctx, &Input{RequestID: "req-1", VisitorID: "v1"})
	require.NoError(t, err)
	assert.True(t, output.Found)
	assert.True(t, output.HasError)
	assert.Equal(t, "Not enough artworks", output.ErrorMessage)
	assert.Equal(t, 1.0, output.Progress)
}

func TestExecute_CompletedEntryEvicted(t *testing.T) {
	tracker, _ := setupRedisTracker(t)
	ctx := context.Background()
	h := NewHandler(createTestConfig(), trackerReader{tracker}, nil, logger.NewTestLogger(t))

	require.NoError(t, tracker.Initialize(ctx, "req-1", "v1"))
	require.NoError(t, tracker.Update(ctx, "req-1", 1.0, "Personalized tour completed!"))

	output, err := h.Execute(ctx, &Input{RequestID: "req-1", VisitorID: "v1"})
	require.NoError(t, err)
	assert.False(t, output.Found)
}

func TestExecute_StoreUnavailable(t *testing.T) {
	tracker, mr := setupRedisTracker(t)
	h := NewHandler(createTestConfig(), trackerReader{tracker}, nil, logger.NewTestLogger(t))
	mr.Close()

	_, err := h.Execute(context.Background(), &Input{RequestID: "req-1", VisitorID: "v1"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheFailed), "got %v", err)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := ParseInput(`{"requestId":"req-1","visitorId":"v1","other":1}`)
	require.NoError(t, err)
	assert.Equal(t, Input{RequestID: "req-1", VisitorID: "v1"}, *input)

	_, err = ParseInput(`{"requestId":"req-1"}`)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	_, err = ParseInput(`{"requestId":"","visitorId":"v1"}`)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
}
