// cmd/worker-manager/wiring.go
package main

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"museum-tour-workers/internal/common/cache"
	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/database"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/corpus"
	"museum-tour-workers/internal/tour/assembly"
	"museum-tour-workers/internal/tour/candidates"
	"museum-tour-workers/internal/tour/cultural"
	"museum-tour-workers/internal/tour/description"
	"museum-tour-workers/internal/tour/generator"
	"museum-tour-workers/internal/tour/progress"
	"museum-tour-workers/internal/tour/quota"
	"museum-tour-workers/internal/tour/scoring"
)

// backends holds the external connections opened at startup. Unused ones stay nil.
type backends struct {
	postgres      *database.PostgresClient
	elasticsearch *database.ElasticsearchClient
	redis         *database.RedisClient
}

func (b backends) close(log logger.Logger) {
	if b.postgres != nil {
		if err := b.postgres.Close(); err != nil {
			log.Error("Error closing postgres", map[string]interface{}{"error": err.Error()})
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Error("Error closing redis", map[string]interface{}{"error": err.Error()})
		}
	}
}

// engine is the assembled generation pipeline plus the resources it owns.
type engine struct {
	generator *generator.Generator
	tracker   *progress.Tracker
	closeFn   func() error
}

func (e *engine) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func buildEngine(cfg *config.Config, b backends, telemetry generator.Telemetry, log logger.Logger) (*engine, error) {
	corp, err := corpus.New(cfg.Corpus, corpus.Clients{Postgres: b.postgres, Elasticsearch: b.elasticsearch}, log)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	var redisClient redis.UniversalClient
	if b.redis != nil {
		redisClient = b.redis.Client
	}

	var (
		store   progress.Store
		closeFn func() error
	)
	switch cfg.Tour.Progress.Store {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("progress store %q requires a redis client", cfg.Tour.Progress.Store)
		}
		store = progress.NewRedisStore(redisClient)
	default:
		mem := progress.NewMemoryStore(millis(cfg.Tour.Progress.JanitorInterval))
		store = mem
		closeFn = mem.Close
	}
	tracker := progress.NewTracker(store, progress.TrackerConfig{
		EntryTTL:     millis(cfg.Tour.Progress.EntryTTL),
		CompletedTTL: millis(cfg.Tour.Progress.CompletedTTL),
	}, log)

	graph := cultural.Default()
	deps := generator.Deps{
		Selector: candidates.NewSelector(corp, graph, candidates.SelectorConfig{
			CandidateLimit: cfg.Tour.CandidateLimit,
			RequireImage:   cfg.Tour.RequireImage,
		}, log),
		Assembler: assembly.NewAssembler(scoring.NewEngine(graph), cfg.Tour.ScoringParallelism, log),
		Tracker:   tracker,
		Describer: description.New(cfg.Description, log),
		Telemetry: telemetry,
	}

	if cfg.Tour.Cache.Enabled {
		if redisClient == nil {
			log.Warn("Description cache enabled without redis, caching disabled", nil)
		} else {
			deps.Cache = cache.New("tour-description", redisClient, log)
		}
	}
	if cfg.Tour.DailyLimit > 0 {
		if redisClient == nil {
			log.Warn("Daily tour limit configured without redis, limit disabled", nil)
		} else {
			deps.Limiter = quota.NewDailyQuota(redisClient, cfg.Tour.DailyLimit, log)
		}
	}

	gen := generator.New(deps, generator.Config{
		DefaultMinStops:        cfg.Tour.DefaultMinStops,
		DefaultMaxStops:        cfg.Tour.DefaultMaxStops,
		AllowShortTours:        cfg.Tour.AllowShortTours,
		DescriptionTTL:         millis(cfg.Tour.Cache.DescriptionTTL),
		DescriptionParallelism: cfg.Tour.DescriptionParallelism,
	}, log)

	log.Info("Tour engine configured", map[string]interface{}{
		"corpus":        cfg.Corpus.Backend,
		"progressStore": cfg.Tour.Progress.Store,
		"cache":         deps.Cache != nil,
		"dailyLimit":    deps.Limiter != nil,
	})

	return &engine{generator: gen, tracker: tracker, closeFn: closeFn}, nil
}
