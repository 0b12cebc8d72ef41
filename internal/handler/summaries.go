package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/middleware"
	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/internal/prompt"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/internal/summarize"
	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
	"github.com/groupdigest/summary-platform/pkg/retry"
)

// Streamer is the slice of the engine router the streaming endpoint needs.
type Streamer interface {
	GenerateStream(ctx context.Context, req *engine.GenerationRequest) <-chan engine.GenerationEvent
	CancelGeneration()
}

// Orchestrator is the slice of the summarize workflow the handlers need.
// AcquireFlight guards caller-managed generations with the same
// per-provider lock the workflow itself uses, so streaming and
// non-streaming runs can never overlap on one backend.
type Orchestrator interface {
	Summarize(ctx context.Context, threadID string) (*model.Summary, error)
	Latest(ctx context.Context, threadID string) (*model.Summary, error)
	AcquireFlight(ctx context.Context) (func(), error)
}

// SummaryHandler handles summary generation and retrieval endpoints.
type SummaryHandler struct {
	orchestrator Orchestrator
	streamer     Streamer
	threads      store.ThreadStore
	messages     store.MessageStore
	prompts      *prompt.Builder
	retryPolicy  retry.Policy
	logger       *logger.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(
	orch Orchestrator,
	streamer Streamer,
	threads store.ThreadStore,
	messages store.MessageStore,
	log *logger.Logger,
) *SummaryHandler {
	return &SummaryHandler{
		orchestrator: orch,
		streamer:     streamer,
		threads:      threads,
		messages:     messages,
		prompts:      prompt.NewBuilder(),
		retryPolicy:  retry.DefaultPolicy(),
		logger:       log,
	}
}

// Create handles POST /api/v1/threads/{id}/summaries
func (h *SummaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Backends never retry internally; transient failures (timeouts,
	// network errors) are retried here under backoff, everything else
	// surfaces immediately.
	var summary *model.Summary
	err := retry.Do(r.Context(), h.retryPolicy, func() error {
		var serr error
		summary, serr = h.orchestrator.Summarize(r.Context(), threadID)
		return serr
	})
	if err != nil {
		h.logger.Error("summary generation failed",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeGenerationError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// Latest handles GET /api/v1/threads/{id}/summaries/latest
func (h *SummaryHandler) Latest(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.orchestrator.Latest(r.Context(), threadID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no summary for this thread yet")
		return
	}
	if err != nil {
		h.logger.Error("failed to load summary", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Stream handles GET /api/v1/threads/{id}/summaries/stream
// Streams generation events over SSE as the summary is produced.
func (h *SummaryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := h.threads.GetThread(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load thread")
		return
	}

	messages, err := h.messages.ListMessages(ctx, threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if len(prompt.Filter(messages)) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no messages to summarize")
		return
	}

	// One in-flight generation per backend; a concurrent streaming or
	// non-streaming run holds the same lock.
	release, err := h.orchestrator.AcquireFlight(ctx)
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	defer release()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// Send initial connection event
	sendSSEEvent(w, flusher, "connected", map[string]string{
		"thread_id": threadID,
	})

	events := h.streamer.GenerateStream(ctx, &engine.GenerationRequest{
		Prompt:      h.prompts.Summarization(messages, thread.Name),
		MaxTokens:   summarize.GenerationMaxTokens,
		Temperature: summarize.GenerationTemperature,
	})

	for ev := range events {
		select {
		case <-ctx.Done():
			// Client disconnected; the context cancellation aborts the
			// backend work, so just drain out.
			h.logger.Info("SSE client disconnected", zap.String("thread_id", threadID))
			return
		default:
		}

		if err := sendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
			h.logger.Warn("failed to write SSE event", zap.Error(err))
			return
		}
	}
}

// Cancel handles POST /api/v1/generation/cancel
func (h *SummaryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.streamer.CancelGeneration()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
