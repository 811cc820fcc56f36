package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"museum-tour-workers/internal/common/config"
	"museum-tour-workers/internal/common/database"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/metrics"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
)

const BackendMemory = "memory"

// Clients carries the connections a backend may need. Only the one matching the
// configured backend has to be set.
type Clients struct {
	Postgres      *database.PostgresClient
	Elasticsearch *database.ElasticsearchClient
}

// New builds the configured backend wrapped in a circuit breaker.
func New(cfg config.CorpusConfig, clients Clients, log logger.Logger) (*BreakerCorpus, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond

	var inner candidates.Corpus
	switch cfg.Backend {
	case BackendPostgres:
		if clients.Postgres == nil {
			return nil, fmt.Errorf("corpus backend %q requires a postgres client", cfg.Backend)
		}
		inner = NewPostgresCorpus(clients.Postgres.DB, cfg.Table, timeout, log)
	case BackendElasticsearch:
		if clients.Elasticsearch == nil {
			return nil, fmt.Errorf("corpus backend %q requires an elasticsearch client", cfg.Backend)
		}
		inner = NewElasticsearchCorpus(clients.Elasticsearch.Client, cfg.Index, timeout, log)
	case BackendMemory:
		mem := candidates.NewMemoryCorpus()
		if cfg.SeedFile != "" {
			artworks, err := LoadSeed(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			mem.Put(artworks...)
		}
		inner = mem
	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.Backend)
	}

	log.Info("Artwork corpus configured", map[string]interface{}{
		"backend": cfg.Backend,
		"timeout": timeout.String(),
	})
	return NewBreakerCorpus(inner, cfg.Backend, cfg.Breaker, log, recordBreakerState), nil
}

func recordBreakerState(backend string, _, to gobreaker.State) {
	metrics.CorpusBreakerState.WithLabelValues(backend).Set(float64(to))
}

// LoadSeed reads a JSON array of artworks.
func LoadSeed(path string) ([]models.Artwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus seed: %w", err)
	}
	var artworks []models.Artwork
	if err := json.Unmarshal(data, &artworks); err != nil {
		return nil, fmt.Errorf("parse corpus seed %s: %w", path, err)
	}
	return artworks, nil
}
