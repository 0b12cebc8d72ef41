package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/middleware"
	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/pkg/logger"
)

// ThreadHandler handles thread and message listing endpoints.
type ThreadHandler struct {
	threads  store.ThreadStore
	messages store.MessageStore
	logger   *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(threads store.ThreadStore, messages store.MessageStore, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, messages: messages, logger: log}
}

// List handles GET /api/v1/threads
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.ListThreads(r.Context())
	if err != nil {
		h.logger.Error("failed to list threads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list threads")
		return
	}
	if threads == nil {
		threads = []model.Thread{}
	}
	writeJSON(w, http.StatusOK, &model.ListThreadsResponse{Threads: threads, Total: len(threads)})
}

// Get handles GET /api/v1/threads/{id}
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := h.threads.GetThread(r.Context(), threadID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get thread", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get thread")
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// Messages handles GET /api/v1/threads/{id}/messages
func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	messages, err := h.messages.ListRecentMessages(r.Context(), threadID, limit)
	if err != nil {
		h.logger.Error("failed to list messages", zap.String("thread_id", threadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    len(messages),
	})
}
