package engine

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

// localGenerateTimeout bounds worst-case on-device inference latency. Not
// caller-configurable.
const localGenerateTimeout = 120 * time.Second

// LocalBackend runs generation against the on-device runtime. The mutex
// protects the model handle from concurrent load/unload; it does not
// serialize Generate calls, which is why callers must keep at most one
// generation in flight per backend.
type LocalBackend struct {
	runtime ModelRuntime
	log     *logger.Logger

	mu     sync.Mutex // guards loaded, info
	loaded bool
	info   *ModelInfo

	cancelMu sync.Mutex
	cancel   context.CancelFunc // active generation, nil otherwise
}

// NewLocalBackend creates a local backend over the given runtime.
func NewLocalBackend(runtime ModelRuntime, log *logger.Logger) *LocalBackend {
	return &LocalBackend{runtime: runtime, log: log}
}

// LoadModel loads the model at path, unloading any previous model first.
func (b *LocalBackend) LoadModel(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		if err := b.runtime.Unload(ctx); err != nil {
			b.log.Warn("unload before reload failed", zap.Error(err))
		}
		b.loaded = false
		b.info = nil
	}

	info, err := b.runtime.Load(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrModelNotFound(path)
		}
		if isOOM(err) {
			return ErrOutOfMemory("model load", err)
		}
		return ErrModelLoadFailed(err.Error(), err)
	}

	b.loaded = true
	b.info = &ModelInfo{
		Name:          info.Model,
		Path:          path,
		ContextLength: info.ContextLength,
		LoadedAt:      time.Now(),
	}
	b.log.Info("local model loaded",
		zap.String("model", info.Model),
		zap.Int("context_length", info.ContextLength),
	)
	return nil
}

// Generate runs one generation call under the local timeout ceiling. The
// deferred cancel aborts the runtime work on every exit path.
func (b *LocalBackend) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	if !b.IsModelLoaded() {
		return "", ErrModelNotLoaded()
	}

	gctx, cancel := context.WithTimeout(ctx, localGenerateTimeout)
	b.setCancel(cancel)
	defer func() {
		b.clearCancel()
		cancel()
	}()

	out, err := b.runtime.Generate(gctx, runtimeRequest(req), nil)
	if err != nil {
		return "", b.mapRuntimeError(gctx, err)
	}
	return out, nil
}

// GenerateStream runs one generation call, delivering events over the
// returned channel. The producer goroutine owns the channel and closes it
// after the terminal event; backend cancellation is a deferred cleanup that
// runs however the stream ends.
func (b *LocalBackend) GenerateStream(ctx context.Context, req *GenerationRequest) <-chan GenerationEvent {
	events := make(chan GenerationEvent, 16)

	go func() {
		defer close(events)

		if !emit(ctx, events, GenerationEvent{Type: EventStarted}) {
			return
		}

		if !b.IsModelLoaded() {
			emit(ctx, events, errorEvent(ErrModelNotLoaded()))
			return
		}

		gctx, cancel := context.WithTimeout(ctx, localGenerateTimeout)
		b.setCancel(cancel)
		defer func() {
			b.clearCancel()
			cancel()
		}()

		full, err := b.runtime.Generate(gctx, runtimeRequest(req), func(token string) {
			metrics.GenerationTokensTotal.WithLabelValues(string(ProviderLocal)).Inc()
			emit(ctx, events, GenerationEvent{Type: EventToken, Token: token})
		})
		if err != nil {
			emit(ctx, events, errorEvent(b.mapRuntimeError(gctx, err)))
			return
		}
		emit(ctx, events, GenerationEvent{Type: EventCompleted, Text: full})
	}()

	return events
}

// GenerateJSON requests JSON-only output through an instructional prefix.
// The runtime's grammar-constrained decoding is not used here; plain
// generation with a strong instruction is what both backends share.
func (b *LocalBackend) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return b.Generate(ctx, jsonRequest(prompt, schema))
}

// CancelGeneration aborts the in-flight generation, if any.
func (b *LocalBackend) CancelGeneration() {
	b.cancelMu.Lock()
	cancel := b.cancel
	b.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// UnloadModel releases the model. Idempotent.
func (b *LocalBackend) UnloadModel(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return nil
	}
	if err := b.runtime.Unload(ctx); err != nil {
		return ErrModelLoadFailed("unload failed", err)
	}
	b.loaded = false
	b.info = nil
	b.log.Info("local model unloaded")
	return nil
}

func (b *LocalBackend) IsModelLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *LocalBackend) ModelInfo() *ModelInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return nil
	}
	info := *b.info
	return &info
}

func (b *LocalBackend) setCancel(cancel context.CancelFunc) {
	b.cancelMu.Lock()
	b.cancel = cancel
	b.cancelMu.Unlock()
}

func (b *LocalBackend) clearCancel() {
	b.cancelMu.Lock()
	b.cancel = nil
	b.cancelMu.Unlock()
}

// mapRuntimeError translates runtime failures into the engine taxonomy.
func (b *LocalBackend) mapRuntimeError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrGenerationTimeout(err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return ErrGenerationFailed("generation cancelled", err)
	case isOOM(err):
		return ErrOutOfMemory("generation", err)
	default:
		return ErrGenerationFailed(err.Error(), err)
	}
}

func isOOM(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "oom")
}

func runtimeRequest(req *GenerationRequest) *RuntimeRequest {
	return &RuntimeRequest{
		Prompt:      req.Prompt,
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// emit sends an event unless the consumer is gone. Returns false when the
// consumer's context ended.
func emit(ctx context.Context, events chan<- GenerationEvent, ev GenerationEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(err error) GenerationEvent {
	ev := GenerationEvent{Type: EventError, Error: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		ev.Err = e
	}
	return ev
}
