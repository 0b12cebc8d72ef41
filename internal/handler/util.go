// Package handler implements the HTTP API surface.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/summarize"
)

// errorResponse is the JSON error body. Code carries the machine-readable
// failure class so the app can offer the right corrective action.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeGenerationError maps orchestration and engine failures to HTTP
// statuses with a cause the user can act on: re-enter a key, switch
// providers, download a model.
func writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, summarize.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread not found")
		return
	case errors.Is(err, summarize.ErrNoMessages):
		writeError(w, http.StatusUnprocessableEntity, "nothing to summarize in this thread")
		return
	case errors.Is(err, summarize.ErrGenerationBusy):
		writeError(w, http.StatusConflict, "a summary is already being generated, try again shortly")
		return
	case errors.Is(err, summarize.ErrInvalidModelRecord):
		writeError(w, http.StatusConflict, "downloaded model record is unusable, re-download the model")
		return
	}

	var engErr *engine.Error
	if errors.As(err, &engErr) {
		status := http.StatusBadGateway
		switch engErr.Kind {
		case engine.KindModelNotLoaded, engine.KindModelNotFound, engine.KindModelLoadFailed:
			status = http.StatusServiceUnavailable
		case engine.KindGenerationTimeout:
			status = http.StatusGatewayTimeout
		case engine.KindOutOfMemory:
			status = http.StatusInsufficientStorage
		}
		writeJSON(w, status, errorResponse{Error: engErr.Error(), Code: engErr.Kind.String()})
		return
	}

	writeError(w, http.StatusInternalServerError, "summary generation failed")
}
