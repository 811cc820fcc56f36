// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"museum-tour-workers/internal/common/camunda"
	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/database"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/observability"
	"museum-tour-workers/internal/corpus"
	canceltourgeneration "museum-tour-workers/internal/workers/tour/cancel-tour-generation"
	generatetour "museum-tour-workers/internal/workers/tour/generate-tour"
	gettourprogress "museum-tour-workers/internal/workers/tour/get-tour-progress"
	"museum-tour-workers/pkg/registry"
)

// jobTimeoutGrace keeps Zeebe from reactivating a job while its handler is still reporting.
const jobTimeoutGrace = 10 * time.Second

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting museum tour worker manager",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability, nil, log)
	defer obs.Shutdown()

	reg, err := registry.LoadRegistry(cfg.App.RegistryPath)
	if err != nil {
		zapLog.Fatal("Failed to load activity registry", zap.String("path", cfg.App.RegistryPath), zap.Error(err))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("Activity registry is invalid", zap.Error(err))
	}

	b, err := connectBackends(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect backends", zap.Error(err))
	}
	defer b.close(log)

	eng, err := buildEngine(cfg, b, obs, log)
	if err != nil {
		zapLog.Fatal("Failed to build tour engine", zap.Error(err))
	}
	defer eng.Close()

	// --- Camunda ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         millis(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 5, 2*time.Second, zapLog, "Zeebe connection")
	if err != nil {
		zapLog.Fatal("Failed to create Zeebe client", zap.Error(err))
	}
	zapLog.Info("Connected to Zeebe", zap.String("address", cfg.Camunda.BrokerAddress))

	// --- Workers ---
	var workers []*camunda.CamundaWorker

	startWorker := func(taskType string, enabled bool, maxJobs int, timeout time.Duration, handler camunda.JobHandler) {
		if !enabled {
			zapLog.Info("Worker disabled", zap.String("taskType", taskType))
			return
		}
		activity, ok := reg.Find(taskType)
		if !ok {
			zapLog.Warn("Worker has no activity registry entry", zap.String("taskType", taskType))
		} else if declared := activity.TimeoutDuration(timeout); declared != timeout {
			zapLog.Warn("Worker timeout differs from activity registry",
				zap.String("taskType", taskType),
				zap.Duration("configured", timeout),
				zap.Duration("registry", declared),
			)
		}

		w := camunda.NewWorker(zeebeClient.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: maxJobs,
			Timeout:       timeout + jobTimeoutGrace,
		}, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	genCfg := generatetour.LoadConfig(cfg)
	if err := genCfg.Validate(); err != nil {
		zapLog.Fatal("Invalid generate-tour config", zap.Error(err))
	}
	startWorker(generatetour.TaskType, genCfg.Enabled, genCfg.MaxJobsActive, genCfg.Timeout,
		generatetour.NewHandler(genCfg, eng.generator, obs, log))

	progCfg := gettourprogress.LoadConfig(cfg)
	if err := progCfg.Validate(); err != nil {
		zapLog.Fatal("Invalid get-tour-progress config", zap.Error(err))
	}
	startWorker(gettourprogress.TaskType, progCfg.Enabled, progCfg.MaxJobsActive, progCfg.Timeout,
		gettourprogress.NewHandler(progCfg, eng.generator, obs, log))

	cancelCfg := canceltourgeneration.LoadConfig(cfg)
	if err := cancelCfg.Validate(); err != nil {
		zapLog.Fatal("Invalid cancel-tour-generation config", zap.Error(err))
	}
	startWorker(canceltourgeneration.TaskType, cancelCfg.Enabled, cancelCfg.MaxJobsActive, cancelCfg.Timeout,
		canceltourgeneration.NewHandler(cancelCfg, eng.generator, obs, log))

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: newStatusMux(zeebeClient, eng, b),
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...",
		zap.Int("inFlight", eng.generator.InFlight()),
	)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// connectBackends opens only the connections the configured corpus and tour stores need.
func connectBackends(cfg *config.Config, log *zap.Logger) (backends, error) {
	var b backends

	switch cfg.Corpus.Backend {
	case corpus.BackendPostgres:
		err := retryWithBackoff(func() error {
			client, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			b.postgres = client
			return nil
		}, 5, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return b, err
		}
		log.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Postgres.Host))
	case corpus.BackendElasticsearch:
		err := retryWithBackoff(func() error {
			client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			b.elasticsearch = client
			return nil
		}, 5, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return b, err
		}
		log.Info("Connected to Elasticsearch", zap.String("url", cfg.Database.Elasticsearch.GetURL()))
	}

	if cfg.RequiresRedis() {
		err := retryWithBackoff(func() error {
			client, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			b.redis = client
			return nil
		}, 5, 2*time.Second, log, "Redis connection")
		if err != nil {
			b.close(logger.NewZapAdapter(log))
			return backends{}, err
		}
		log.Info("Connected to Redis", zap.String("address", cfg.Database.Redis.Address))
	}

	return b, nil
}

// healthChecker is satisfied by the Zeebe client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func newStatusMux(zeebe healthChecker, eng *engine, b backends) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		check := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}

		if zeebe != nil {
			check("zeebe", zeebe.HealthCheck(ctx))
		}
		if b.redis != nil {
			check("redis", b.redis.Ping(ctx))
		}
		if b.postgres != nil {
			check("postgres", b.postgres.Ping(ctx))
		}
		if b.elasticsearch != nil {
			check("elasticsearch", b.elasticsearch.Ping(ctx))
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeStatus(w, code, map[string]interface{}{
			"status":   status,
			"checks":   checks,
			"inFlight": eng.generator.InFlight(),
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
