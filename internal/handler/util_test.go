package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/summarize"
)

func TestWriteGenerationError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"thread not found", summarize.ErrThreadNotFound, http.StatusNotFound, ""},
		{"no messages", summarize.ErrNoMessages, http.StatusUnprocessableEntity, ""},
		{"busy", summarize.ErrGenerationBusy, http.StatusConflict, ""},
		{"invalid model record", summarize.ErrInvalidModelRecord, http.StatusConflict, ""},
		{"model not loaded", engine.ErrModelNotLoaded(), http.StatusServiceUnavailable, "model_not_loaded"},
		{"model not found", engine.ErrModelNotFound("/models/x.gguf"), http.StatusServiceUnavailable, "model_not_found"},
		{"load failed", engine.ErrModelLoadFailed("bad magic", nil), http.StatusServiceUnavailable, "model_load_failed"},
		{"timeout", engine.ErrGenerationTimeout(nil), http.StatusGatewayTimeout, "generation_timeout"},
		{"oom", engine.ErrOutOfMemory("generation", nil), http.StatusInsufficientStorage, "out_of_memory"},
		{"generation failed", engine.ErrGenerationFailed("invalid credential", nil), http.StatusBadGateway, "generation_failed"},
		{"unclassified", errors.New("something else"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			writeGenerationError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestWriteGenerationErrorUnwrapsWrappedEngineErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	wrapped := errors.Join(errors.New("context"), engine.ErrGenerationTimeout(nil))
	writeGenerationError(rec, wrapped)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
