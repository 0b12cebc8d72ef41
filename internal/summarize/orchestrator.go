// Package summarize runs the end-to-end summary generation workflow.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/internal/parse"
	"github.com/groupdigest/summary-platform/internal/prompt"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

// Generation parameters tuned for summarization: temperature is kept
// below the engine default to reduce run-to-run variance.
const (
	GenerationMaxTokens   = 512
	GenerationTemperature = 0.3
)

// Orchestration-level failures, distinct from engine errors.
var (
	// ErrThreadNotFound reports an unknown thread id.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNoMessages reports a thread with nothing summarizable.
	ErrNoMessages = errors.New("no messages to summarize")

	// ErrInvalidModelRecord reports a downloaded-model record without a
	// usable local file path.
	ErrInvalidModelRecord = errors.New("downloaded model record has no local file path")

	// ErrGenerationBusy reports an overlapping run against the same
	// backend. Backends support one in-flight generation; the orchestrator
	// is where that invariant is enforced.
	ErrGenerationBusy = errors.New("a generation is already running for this provider")
)

// Engine is the slice of the router surface the orchestrator needs.
type Engine interface {
	LoadModel(ctx context.Context, path string) error
	Generate(ctx context.Context, req *engine.GenerationRequest) (string, error)
	IsModelLoaded() bool
}

// EventPublisher announces completed summaries. Optional.
type EventPublisher interface {
	PublishSummary(ctx context.Context, event *model.SummaryEvent) error
}

// Orchestrator drives one summarization run: ensure a backend is ready,
// fetch the thread's messages, build the prompt, generate, parse, persist.
// The first hard failure propagates verbatim; nothing partial is stored,
// and retry is left to the caller.
type Orchestrator struct {
	engine    Engine
	prefs     engine.ProviderSource
	messages  store.MessageStore
	threads   store.ThreadStore
	summaries store.SummaryStore
	registry  store.ModelRegistry
	events    EventPublisher
	prompts   *prompt.Builder
	parser    *parse.Parser
	log       *logger.Logger

	// One flight lock per provider: at most one in-flight generation per
	// backend instance.
	flightMu sync.Mutex
	flights  map[engine.Provider]*sync.Mutex
}

// NewOrchestrator creates an orchestrator. events may be nil.
func NewOrchestrator(
	eng Engine,
	prefs engine.ProviderSource,
	messages store.MessageStore,
	threads store.ThreadStore,
	summaries store.SummaryStore,
	registry store.ModelRegistry,
	events EventPublisher,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:    eng,
		prefs:     prefs,
		messages:  messages,
		threads:   threads,
		summaries: summaries,
		registry:  registry,
		events:    events,
		prompts:   prompt.NewBuilder(),
		parser:    parse.NewParser(),
		log:       log,
	}
}

// Summarize generates and persists a summary for the thread.
func (o *Orchestrator) Summarize(ctx context.Context, threadID string) (*model.Summary, error) {
	start := time.Now()

	provider, err := o.prefs.ActiveProvider(ctx)
	if err != nil {
		provider = engine.ProviderLocal
	}

	// Stage 1: backend readiness.
	if err := o.ensureReady(ctx); err != nil {
		return nil, err
	}

	// Stage 2: thread and messages.
	thread, err := o.threads.GetThread(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}

	messages, err := o.messages.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	// Stage 3: prompt. An empty filtered set is terminal; the backend is
	// never invoked for it.
	filtered := prompt.Filter(messages)
	if len(filtered) == 0 {
		return nil, ErrNoMessages
	}
	promptText := o.prompts.Summarization(messages, thread.Name)

	// Stage 4: generation, guarded against overlapping runs.
	release, err := o.acquireFlight(provider)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := o.engine.Generate(ctx, &engine.GenerationRequest{
		Prompt:      promptText,
		MaxTokens:   GenerationMaxTokens,
		Temperature: GenerationTemperature,
	})
	if err != nil {
		metrics.SummariesTotal.WithLabelValues(string(provider), "error").Inc()
		return nil, err
	}

	// Stage 5: parse. Total; cannot fail.
	parsed := o.parser.Parse(raw)

	// Stage 6: construct and persist. Bounds come from the filtered set,
	// so they describe only what was actually summarized.
	summary := &model.Summary{
		ThreadID:              threadID,
		ThreadName:            thread.Name,
		Overview:              parsed.Overview,
		KeyTopics:             parsed.KeyTopics,
		ActionItems:           parsed.ActionItems,
		Announcements:         parsed.Announcements,
		ParticipantHighlights: []model.ParticipantHighlight{},
		MessageCount:          len(filtered),
		StartTimestamp:        filtered[0].Timestamp,
		EndTimestamp:          filtered[len(filtered)-1].Timestamp,
		GeneratedAt:           time.Now(),
		RawModelResponse:      raw,
	}

	id, err := o.summaries.CreateSummary(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}
	summary.ID = id

	metrics.SummariesTotal.WithLabelValues(string(provider), "success").Inc()
	metrics.GenerationDuration.WithLabelValues(string(provider), "success").Observe(time.Since(start).Seconds())

	o.log.Info("summary generated",
		zap.String("thread_id", threadID),
		zap.String("summary_id", summary.ID),
		zap.String("provider", string(provider)),
		zap.Int("message_count", summary.MessageCount),
	)

	if o.events != nil {
		if err := o.events.PublishSummary(ctx, &model.SummaryEvent{
			SummaryID:    summary.ID,
			ThreadID:     threadID,
			MessageCount: summary.MessageCount,
			Provider:     string(provider),
			GeneratedAt:  summary.GeneratedAt,
		}); err != nil {
			o.log.Warn("publish summary event failed", zap.Error(err))
		}
	}

	return summary, nil
}

// ensureReady loads a model when none is loaded yet, using the registry's
// downloaded-model record.
func (o *Orchestrator) ensureReady(ctx context.Context) error {
	if o.engine.IsModelLoaded() {
		return nil
	}

	record, err := o.registry.DownloadedModel(ctx)
	if err != nil {
		return fmt.Errorf("read model registry: %w", err)
	}
	if record == nil {
		return engine.ErrModelNotLoaded()
	}
	if record.LocalFilePath == "" {
		return ErrInvalidModelRecord
	}
	return o.engine.LoadModel(ctx, record.LocalFilePath)
}

// AcquireFlight takes the flight lock of the currently preferred provider
// for a caller-managed generation, such as the streaming endpoint. The
// returned release must be called once the generation ends. Returns
// ErrGenerationBusy when a run is already in flight.
func (o *Orchestrator) AcquireFlight(ctx context.Context) (func(), error) {
	provider, err := o.prefs.ActiveProvider(ctx)
	if err != nil {
		provider = engine.ProviderLocal
	}
	return o.acquireFlight(provider)
}

func (o *Orchestrator) acquireFlight(provider engine.Provider) (func(), error) {
	flight := o.flightFor(provider)
	if !flight.TryLock() {
		return nil, ErrGenerationBusy
	}
	return flight.Unlock, nil
}

func (o *Orchestrator) flightFor(provider engine.Provider) *sync.Mutex {
	o.flightMu.Lock()
	defer o.flightMu.Unlock()
	if o.flights == nil {
		o.flights = make(map[engine.Provider]*sync.Mutex)
	}
	mu, ok := o.flights[provider]
	if !ok {
		mu = &sync.Mutex{}
		o.flights[provider] = mu
	}
	return mu
}

// Latest returns the newest persisted summary for a thread, or
// store.ErrNotFound when none exists yet.
func (o *Orchestrator) Latest(ctx context.Context, threadID string) (*model.Summary, error) {
	return o.summaries.LatestSummary(ctx, threadID)
}
