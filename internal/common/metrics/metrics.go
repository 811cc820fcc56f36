// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Tour generation
var (
	TourGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_generations_total",
			Help: "Tour generation attempts by theme and outcome",
		},
		[]string{"theme", "outcome"},
	)

	TourGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tour_generation_duration_seconds",
			Help:    "End-to-end tour generation latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"theme"},
	)

	TourStops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tour_stops",
			Help:    "Number of stops in generated tours",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	CandidateTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_candidate_tier_total",
			Help: "Deepest candidate relaxation tier reached per selection",
		},
		[]string{"tier"},
	)

	GenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tour_generations_in_flight",
			Help: "Generations currently tracked as running",
		},
	)

	CorpusBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corpus_breaker_state",
			Help: "Corpus circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"backend"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tour_cache_requests_total",
			Help: "Get-or-compute cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)
)
