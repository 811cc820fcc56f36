// Package generator runs a tour generation request end to end: quota, candidate selection,
// assembly, descriptions and progress reporting.
package generator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"museum-tour-workers/internal/common/cache"
	"museum-tour-workers/internal/common/errors"
	"museum-tour-workers/internal/common/logger"
	"museum-tour-workers/internal/common/metrics"
	"museum-tour-workers/internal/models"
	"museum-tour-workers/internal/tour/candidates"
	"museum-tour-workers/internal/tour/description"
	"museum-tour-workers/internal/tour/progress"
)

const (
	StageSelecting  = "Selecting artworks..."
	StageDescribing = "Filling in descriptions..."
	StageCreating   = "Creating tour..."
	StageCompleted  = "Personalized tour completed!"
)

// ==========================
// 1. Collaborators
// ==========================

type CandidateSource interface {
	Select(ctx context.Context, prefs models.TourPreferences) (candidates.Selection, error)
}

type StopAssembler interface {
	Assemble(ctx context.Context, pool []models.Artwork, prefs models.TourPreferences) ([]models.TourStop, error)
}

// Limiter admits or rejects a generation for a visitor.
type Limiter interface {
	Acquire(ctx context.Context, visitorID string) (int, error)
}

type Telemetry interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	RecordStage(ctx context.Context, stage string, duration time.Duration)
}

type noopTelemetry struct {
	tracer trace.Tracer
}

func (n noopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (noopTelemetry) RecordStage(context.Context, string, time.Duration) {}

type Config struct {
	DefaultMinStops        int
	DefaultMaxStops        int
	AllowShortTours        bool
	DescriptionTTL         time.Duration
	DescriptionParallelism int
}

// Deps groups the collaborators. Cache, Limiter and Telemetry are optional.
type Deps struct {
	Selector  CandidateSource
	Assembler StopAssembler
	Tracker   *progress.Tracker
	Describer description.Describer
	Cache     *cache.Cache
	Limiter   Limiter
	Telemetry Telemetry
}

type inflightRun struct {
	visitorID string
	cancel    context.CancelFunc
}

type Generator struct {
	deps     Deps
	config   Config
	fallback description.Describer
	logger   logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]inflightRun
}

func New(deps Deps, cfg Config, log logger.Logger) *Generator {
	if cfg.DefaultMinStops <= 0 {
		cfg.DefaultMinStops = models.DefaultMinStops
	}
	if cfg.DefaultMaxStops <= 0 {
		cfg.DefaultMaxStops = models.DefaultMaxStops
	}
	if cfg.DescriptionParallelism <= 0 {
		cfg.DescriptionParallelism = 4
	}
	if deps.Telemetry == nil {
		deps.Telemetry = noopTelemetry{tracer: noop.NewTracerProvider().Tracer("generator")}
	}
	if deps.Describer == nil {
		deps.Describer = description.NewTemplateDescriber()
	}
	return &Generator{
		deps:     deps,
		config:   cfg,
		fallback: description.NewTemplateDescriber(),
		logger:   log.WithFields(map[string]interface{}{"component": "generator"}),
		now:      time.Now,
		inflight: make(map[string]inflightRun),
	}
}

// ==========================
// 2. Public Operations
// ==========================

// Generate builds a tour for the request. A request id is assigned when absent. Every
// failure after the progress entry exists marks it failed; cancellation through Cancel
// surfaces as GENERATION_CANCELLED.
func (g *Generator) Generate(ctx context.Context, req models.TourRequest) (*models.Tour, error) {
	start := g.now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if strings.TrimSpace(req.VisitorID) == "" {
		return nil, errors.NewPreferencesInvalidError("visitorId is required")
	}
	prefs := req.Preferences.WithDefaults(g.config.DefaultMinStops, g.config.DefaultMaxStops)
	theme := themeLabel(prefs.Theme)

	if err := g.deps.Tracker.Initialize(ctx, req.RequestID, req.VisitorID); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.register(req.RequestID, req.VisitorID, cancel)
	defer g.unregister(req.RequestID)

	metrics.GenerationsInFlight.Inc()
	defer metrics.GenerationsInFlight.Dec()

	runCtx, span := g.deps.Telemetry.StartSpan(runCtx, "tour.generate",
		attribute.String("tour.request_id", req.RequestID),
		attribute.String("tour.theme", theme),
		attribute.Int64("tour.museum_id", prefs.MuseumID),
	)
	defer span.End()

	log := g.logger.WithFields(map[string]interface{}{
		"requestId": req.RequestID,
		"visitorId": req.VisitorID,
	})
	log.Info("Tour generation started", map[string]interface{}{
		"museumId": prefs.MuseumID,
		"theme":    theme,
	})

	tour, err := g.run(runCtx, req.RequestID, req.VisitorID, prefs)
	metrics.TourGenerationDuration.WithLabelValues(theme).Observe(g.now().Sub(start).Seconds())
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeGenerationCancelled) || stderrors.Is(runCtx.Err(), context.Canceled) {
			err = errors.NewGenerationCancelledError(req.RequestID)
		}
		g.fail(ctx, req.RequestID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		metrics.TourGenerations.WithLabelValues(theme, strings.ToLower(string(errors.CodeOf(err)))).Inc()
		log.Warn("Tour generation failed", map[string]interface{}{
			"errorCode": string(errors.CodeOf(err)),
			"error":     err.Error(),
		})
		return nil, err
	}

	metrics.TourGenerations.WithLabelValues(theme, "success").Inc()
	metrics.TourStops.Observe(float64(len(tour.Stops)))
	span.SetAttributes(attribute.Int("tour.stops", len(tour.Stops)))
	log.Info("Tour generation completed", map[string]interface{}{
		"tourId":     tour.ID,
		"stops":      len(tour.Stops),
		"durationMs": g.now().Sub(start).Milliseconds(),
	})
	return tour, nil
}

// Progress returns the request's status to its owner.
func (g *Generator) Progress(ctx context.Context, requestID, visitorID string) (progress.Status, error) {
	return g.deps.Tracker.Status(ctx, requestID, visitorID)
}

// Cancel stops a generation owned by visitorID and marks it failed. A run on another
// instance notices the failed entry at its next progress update.
func (g *Generator) Cancel(ctx context.Context, requestID, visitorID string) error {
	if _, err := g.deps.Tracker.Status(ctx, requestID, visitorID); err != nil {
		return err
	}

	// The entry is failed first so the run's own failure report loses the race.
	if err := g.deps.Tracker.Fail(ctx, requestID, progress.CancelledStage); err != nil {
		return err
	}

	g.mu.Lock()
	r, local := g.inflight[requestID]
	g.mu.Unlock()
	if local && r.visitorID == visitorID {
		r.cancel()
	}
	g.logger.Info("Tour generation cancelled", map[string]interface{}{
		"requestId": requestID,
		"local":     local,
	})
	return nil
}

// ==========================
// 3. Generation Pipeline
// ==========================

func (g *Generator) run(ctx context.Context, requestID, visitorID string, prefs models.TourPreferences) (*models.Tour, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if g.deps.Limiter != nil {
		if _, err := g.deps.Limiter.Acquire(ctx, visitorID); err != nil {
			return nil, err
		}
	}

	if err := g.advance(ctx, requestID, 0.2, StageSelecting); err != nil {
		return nil, err
	}
	stops, err := g.selectStops(ctx, prefs)
	if err != nil {
		return nil, err
	}

	if err := g.advance(ctx, requestID, 0.6, StageDescribing); err != nil {
		return nil, err
	}
	texts, err := g.describe(ctx, visitorID, prefs, stops)
	if err != nil {
		return nil, err
	}
	for i := range stops {
		stops[i].Description = texts.Stops[i]
	}

	if err := g.advance(ctx, requestID, 0.9, StageCreating); err != nil {
		return nil, err
	}
	now := g.now().UTC()
	tour := &models.Tour{
		ID:          uuid.NewString(),
		Name:        models.TourName(prefs.Theme, now),
		Description: texts.Tour,
		Theme:       prefs.Theme,
		MuseumID:    prefs.MuseumID,
		VisitorID:   visitorID,
		Stops:       stops,
		CreatedAt:   now,
	}

	if err := g.advance(ctx, requestID, 1.0, StageCompleted); err != nil {
		return nil, err
	}
	return tour, nil
}

func (g *Generator) selectStops(ctx context.Context, prefs models.TourPreferences) ([]models.TourStop, error) {
	started := g.now()
	spanCtx, span := g.deps.Telemetry.StartSpan(ctx, "tour.select")
	selection, err := g.deps.Selector.Select(spanCtx, prefs)
	span.End()
	if err != nil {
		return nil, err
	}
	g.deps.Telemetry.RecordStage(ctx, "select", g.now().Sub(started))
	metrics.CandidateTier.WithLabelValues(selection.Tier.String()).Inc()

	started = g.now()
	spanCtx, span = g.deps.Telemetry.StartSpan(ctx, "tour.assemble",
		attribute.Int("tour.candidates", len(selection.Candidates)))
	stops, err := g.deps.Assembler.Assemble(spanCtx, selection.Candidates, prefs)
	span.End()
	if err != nil {
		return nil, err
	}
	g.deps.Telemetry.RecordStage(ctx, "assemble", g.now().Sub(started))

	if len(stops) == 0 || (len(stops) < prefs.MinStops && !g.config.AllowShortTours) {
		return nil, errors.NewInsufficientCandidatesError(len(stops), prefs.MinStops)
	}
	return stops, nil
}

// Texts are the generated tour and per-stop descriptions, cached together.
type Texts struct {
	Tour  string   `json:"tour"`
	Stops []string `json:"stops"`
}

func (g *Generator) describe(ctx context.Context, visitorID string, prefs models.TourPreferences, stops []models.TourStop) (Texts, error) {
	started := g.now()
	defer func() { g.deps.Telemetry.RecordStage(ctx, "describe", g.now().Sub(started)) }()

	compute := func(ctx context.Context) (Texts, error) {
		return g.computeTexts(ctx, prefs.Theme, stops)
	}
	if g.deps.Cache == nil {
		return compute(ctx)
	}

	key := DescriptionCacheKey(visitorID, prefs, stops, g.now())
	texts, hit, err := cache.GetOrComputeJSON(ctx, g.deps.Cache, key, g.config.DescriptionTTL, compute)
	if err != nil {
		return Texts{}, err
	}
	if len(texts.Stops) != len(stops) {
		// Entry written for a different stop list.
		if err := g.deps.Cache.Invalidate(ctx, key); err != nil {
			g.logger.Warn("Failed to invalidate description entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return compute(ctx)
	}
	g.logger.Debug("Descriptions resolved", map[string]interface{}{"cacheHit": hit})
	return texts, nil
}

// computeTexts asks the describer for every text and falls back to templates per text on
// failure. Only cancellation aborts.
func (g *Generator) computeTexts(ctx context.Context, theme models.Theme, stops []models.TourStop) (Texts, error) {
	texts := Texts{Stops: make([]string, len(stops))}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.DescriptionParallelism)

	eg.Go(func() error {
		artworks := models.StopArtworks(stops)
		text, err := g.deps.Describer.DescribeTour(egCtx, artworks, theme)
		if err != nil {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			g.logDescriptionFallback("tour", -1, err)
			text, _ = g.fallback.DescribeTour(egCtx, artworks, theme)
		}
		texts.Tour = text
		return nil
	})

	for i := range stops {
		eg.Go(func() error {
			text, err := g.deps.Describer.DescribeStop(egCtx, stops, i, theme)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				g.logDescriptionFallback("stop", i, err)
				text, _ = g.fallback.DescribeStop(egCtx, stops, i, theme)
			}
			texts.Stops[i] = text
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return Texts{}, errors.NewGenerationCancelledError("")
	}
	return texts, nil
}

func (g *Generator) logDescriptionFallback(kind string, index int, err error) {
	g.logger.Warn("Description failed, using template", map[string]interface{}{
		"kind":  kind,
		"index": index,
		"error": err.Error(),
	})
}

// ==========================
// 4. Helper Functions
// ==========================

// advance reports progress. A terminal entry means the request was cancelled elsewhere.
func (g *Generator) advance(ctx context.Context, requestID string, p float64, stage string) error {
	if ctx.Err() != nil {
		return errors.NewGenerationCancelledError(requestID)
	}
	err := g.deps.Tracker.Update(ctx, requestID, p, stage)
	if errors.HasCode(err, errors.ErrCodeProgressTransitionInvalid) {
		return errors.NewGenerationCancelledError(requestID)
	}
	return err
}

func (g *Generator) fail(ctx context.Context, requestID string, cause error) {
	message := errors.Normalize(cause).Message
	if errors.HasCode(cause, errors.ErrCodeGenerationCancelled) {
		message = progress.CancelledStage
	}

	err := g.deps.Tracker.Fail(context.WithoutCancel(ctx), requestID, message)
	if err != nil && !errors.HasCode(err, errors.ErrCodeProgressTransitionInvalid) {
		g.logger.Warn("Failed to mark generation failed", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
	}
}

func (g *Generator) register(requestID, visitorID string, cancel context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inflight[requestID] = inflightRun{visitorID: visitorID, cancel: cancel}
}

func (g *Generator) unregister(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, requestID)
}

// InFlight returns the number of generations running in this process.
func (g *Generator) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

func themeLabel(theme models.Theme) string {
	if !theme.Valid() {
		return "unknown"
	}
	return string(theme)
}

// DescriptionCacheKey is visitor, preference hash, artwork ids in stop order and UTC day
// joined by dashes. Stop texts are positional, so a reordered tour gets its own entry.
func DescriptionCacheKey(visitorID string, prefs models.TourPreferences, stops []models.TourStop, at time.Time) string {
	ids := models.ArtworkIDs(models.StopArtworks(stops))

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("%s-%016x-%s-%s",
		visitorID, PreferencesHash(prefs), strings.Join(parts, "-"), at.UTC().Format("2006-01-02"))
}

// PreferencesHash is the xxhash of the preferences' JSON encoding.
func PreferencesHash(prefs models.TourPreferences) uint64 {
	data, _ := json.Marshal(prefs)
	return xxhash.Sum64(data)
}
