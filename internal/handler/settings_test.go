package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/pkg/logger"
)

type prefsStub struct {
	provider   engine.Provider
	credential string
	threshold  float64
}

func (p *prefsStub) ActiveProvider(ctx context.Context) (engine.Provider, error) {
	return p.provider, nil
}

func (p *prefsStub) SetActiveProvider(ctx context.Context, provider engine.Provider) error {
	p.provider = provider
	return nil
}

func (p *prefsStub) CloudCredential(ctx context.Context) (string, error) {
	return p.credential, nil
}

func (p *prefsStub) SetCloudCredential(ctx context.Context, credential string) error {
	p.credential = credential
	return nil
}

func (p *prefsStub) ImportanceThreshold(ctx context.Context) (float64, error) {
	return p.threshold, nil
}

func (p *prefsStub) SetImportanceThreshold(ctx context.Context, threshold float64) error {
	p.threshold = threshold
	return nil
}

func TestSettingsGet(t *testing.T) {
	prefs := &prefsStub{provider: engine.ProviderLocal, credential: "sk-test", threshold: 0.7}
	h := NewSettingsHandler(prefs, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "local", body.Provider)
	assert.InDelta(t, 0.7, body.ImportanceThreshold, 1e-9)
	assert.True(t, body.CloudCredentialSet)

	// The credential value itself is never echoed back.
	assert.NotContains(t, rec.Body.String(), "sk-test")
}

func TestSettingsUpdateProvider(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       engine.Provider
	}{
		{"switch to cloud", `{"provider":"cloud"}`, http.StatusOK, engine.ProviderCloud},
		{"normalized casing", `{"provider":" Cloud "}`, http.StatusOK, engine.ProviderCloud},
		{"back to local", `{"provider":"local"}`, http.StatusOK, engine.ProviderLocal},
		{"unknown provider", `{"provider":"mainframe"}`, http.StatusBadRequest, engine.ProviderLocal},
		{"malformed body", `{Provider`, http.StatusBadRequest, engine.ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := &prefsStub{provider: engine.ProviderLocal}
			h := NewSettingsHandler(prefs, logger.NewNop())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/provider", strings.NewReader(tt.body))
			h.UpdateProvider(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.want, prefs.provider)
		})
	}
}

func TestSettingsUpdateThreshold(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"threshold":0.8}`, http.StatusOK},
		{"zero allowed", `{"threshold":0}`, http.StatusOK},
		{"too high", `{"threshold":1.5}`, http.StatusBadRequest},
		{"negative", `{"threshold":-0.1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSettingsHandler(&prefsStub{}, logger.NewNop())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/threshold", strings.NewReader(tt.body))
			h.UpdateThreshold(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSettingsUpdateCredential(t *testing.T) {
	prefs := &prefsStub{}
	h := NewSettingsHandler(prefs, logger.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/credential", strings.NewReader(`{"credential":"  sk-new  "}`))
	h.UpdateCredential(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sk-new", prefs.credential)
}
