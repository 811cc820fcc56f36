package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/logger"
)

func gatheredNames(t *testing.T, reg *promclient.Registry) []string {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func containsPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestObservability_MetricsExported(t *testing.T) {
	reg := promclient.NewRegistry()
	o := New(config.ObservabilityConfig{ServiceName: "museum-tour-workers"}, reg, logger.NewTestLogger(t))
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordJobProcessed(ctx, "generate-tour", "success")
	o.RecordJobDuration(ctx, "generate-tour", 120*time.Millisecond, "success")
	o.RecordStage(ctx, "select", 3*time.Millisecond)

	names := gatheredNames(t, reg)
	assert.True(t, containsPrefix(names, "jobs_processed"), "got %v", names)
	assert.True(t, containsPrefix(names, "jobs_duration"), "got %v", names)
	assert.True(t, containsPrefix(names, "tour_stage_duration"), "got %v", names)
}

func TestObservability_TracingDisabled(t *testing.T) {
	o := New(config.ObservabilityConfig{ServiceName: "svc"}, promclient.NewRegistry(), logger.NewTestLogger(t))
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "tour.generate", attribute.String("theme", "CULTURAL"))
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.IsRecording())
	assert.Nil(t, o.tracerProvider)
}

func TestObservability_SpansFlushedToJaeger(t *testing.T) {
	var posts atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer collector.Close()

	o := New(config.ObservabilityConfig{
		ServiceName:    "svc",
		TracingEnabled: true,
		JaegerEndpoint: collector.URL + "/api/traces",
	}, promclient.NewRegistry(), logger.NewTestLogger(t))

	_, span := o.StartSpan(context.Background(), "tour.generate")
	assert.True(t, span.IsRecording())
	span.End()

	o.Shutdown()
	assert.GreaterOrEqual(t, posts.Load(), int32(1))
}
