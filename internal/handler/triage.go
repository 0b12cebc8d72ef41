package handler

import (
	"encoding/json"
	"net/http"

	"github.com/groupdigest/summary-platform/internal/middleware"
	"github.com/groupdigest/summary-platform/internal/triage"
	"github.com/groupdigest/summary-platform/pkg/logger"
)

// TriageHandler exposes importance scoring over HTTP.
type TriageHandler struct {
	scorer *triage.Scorer
	logger *logger.Logger
}

// NewTriageHandler creates a new triage handler.
func NewTriageHandler(scorer *triage.Scorer, log *logger.Logger) *TriageHandler {
	return &TriageHandler{scorer: scorer, logger: log}
}

// ScoreRequest is the body for POST /api/v1/triage/score.
type ScoreRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// ScoreResponse carries the score and the notify decision together so
// clients never apply a stale threshold themselves.
type ScoreResponse struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Notify    bool    `json:"notify"`
}

// Score handles POST /api/v1/triage/score
func (h *TriageHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	score := h.scorer.Score(r.Context(), req.Content, req.Sender)
	threshold := h.scorer.Threshold(r.Context())

	writeJSON(w, http.StatusOK, &ScoreResponse{
		Score:     score,
		Threshold: threshold,
		Notify:    score >= threshold,
	})
}
