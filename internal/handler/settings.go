package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/pkg/logger"
)

// SettingsHandler handles provider, credential and threshold preferences.
type SettingsHandler struct {
	prefs  store.PreferenceStore
	logger *logger.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(prefs store.PreferenceStore, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{prefs: prefs, logger: log}
}

// SettingsResponse is the read view of the current preferences. The cloud
// credential is never echoed back, only whether one is set.
type SettingsResponse struct {
	Provider            string  `json:"provider"`
	ImportanceThreshold float64 `json:"importance_threshold"`
	CloudCredentialSet  bool    `json:"cloud_credential_set"`
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider, err := h.prefs.ActiveProvider(ctx)
	if err != nil {
		h.logger.Error("failed to read provider preference", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	threshold, err := h.prefs.ImportanceThreshold(ctx)
	if err != nil {
		h.logger.Error("failed to read importance threshold", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	credential, err := h.prefs.CloudCredential(ctx)
	if err != nil {
		h.logger.Error("failed to read cloud credential", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	writeJSON(w, http.StatusOK, &SettingsResponse{
		Provider:            string(provider),
		ImportanceThreshold: threshold,
		CloudCredentialSet:  strings.TrimSpace(credential) != "",
	})
}

// UpdateProviderRequest is the body for PUT /api/v1/settings/provider.
type UpdateProviderRequest struct {
	Provider string `json:"provider"`
}

// UpdateProvider handles PUT /api/v1/settings/provider
func (h *SettingsHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var req UpdateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	normalized := strings.ToLower(strings.TrimSpace(req.Provider))
	if normalized != string(engine.ProviderLocal) && normalized != string(engine.ProviderCloud) {
		writeError(w, http.StatusBadRequest, "provider must be \"local\" or \"cloud\"")
		return
	}

	if err := h.prefs.SetActiveProvider(r.Context(), engine.Provider(normalized)); err != nil {
		h.logger.Error("failed to update provider preference", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update provider")
		return
	}

	h.logger.Info("active provider updated", zap.String("provider", normalized))
	writeJSON(w, http.StatusOK, map[string]string{"provider": normalized})
}

// UpdateCredentialRequest is the body for PUT /api/v1/settings/credential.
type UpdateCredentialRequest struct {
	Credential string `json:"credential"`
}

// UpdateCredential handles PUT /api/v1/settings/credential
func (h *SettingsHandler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	var req UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.prefs.SetCloudCredential(r.Context(), strings.TrimSpace(req.Credential)); err != nil {
		h.logger.Error("failed to update cloud credential", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update credential")
		return
	}

	h.logger.Info("cloud credential updated")
	writeJSON(w, http.StatusOK, map[string]bool{"cloud_credential_set": strings.TrimSpace(req.Credential) != ""})
}

// UpdateThresholdRequest is the body for PUT /api/v1/settings/threshold.
type UpdateThresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

// UpdateThreshold handles PUT /api/v1/settings/threshold
func (h *SettingsHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req UpdateThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Threshold < 0 || req.Threshold > 1 {
		writeError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
		return
	}

	if err := h.prefs.SetImportanceThreshold(r.Context(), req.Threshold); err != nil {
		h.logger.Error("failed to update importance threshold", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update threshold")
		return
	}

	h.logger.Info("importance threshold updated", zap.Float64("threshold", req.Threshold))
	writeJSON(w, http.StatusOK, map[string]float64{"threshold": req.Threshold})
}
