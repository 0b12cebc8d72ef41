package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/pkg/logger"
)

type stubBackend struct {
	name string

	loaded bool
	info   *ModelInfo

	generateCalls int
	cancelCalls   int
	unloadCalls   int
	unloadErr     error
}

func (s *stubBackend) LoadModel(ctx context.Context, path string) error { return nil }

func (s *stubBackend) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	s.generateCalls++
	return s.name, nil
}

func (s *stubBackend) GenerateStream(ctx context.Context, req *GenerationRequest) <-chan GenerationEvent {
	events := make(chan GenerationEvent, 2)
	events <- GenerationEvent{Type: EventStarted}
	events <- GenerationEvent{Type: EventCompleted, Text: s.name}
	close(events)
	return events
}

func (s *stubBackend) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return s.name, nil
}

func (s *stubBackend) CancelGeneration() { s.cancelCalls++ }

func (s *stubBackend) UnloadModel(ctx context.Context) error {
	s.unloadCalls++
	return s.unloadErr
}

func (s *stubBackend) IsModelLoaded() bool  { return s.loaded }
func (s *stubBackend) ModelInfo() *ModelInfo { return s.info }

type prefStub struct {
	provider Provider
	err      error
}

func (p *prefStub) ActiveProvider(ctx context.Context) (Provider, error) {
	return p.provider, p.err
}

func newTestRouter(local, cloud Backend, prefs ProviderSource) *Router {
	return NewRouter(local, cloud, prefs, logger.NewNop())
}

func TestRouterRoutesPerCall(t *testing.T) {
	local := &stubBackend{name: "local"}
	cloud := &stubBackend{name: "cloud"}
	prefs := &prefStub{provider: ProviderLocal}
	r := newTestRouter(local, cloud, prefs)

	out, err := r.Generate(context.Background(), &GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "local", out)

	// Switching the preference takes effect on the very next call, no
	// reconstruction needed.
	prefs.provider = ProviderCloud
	out, err = r.Generate(context.Background(), &GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "cloud", out)

	assert.Equal(t, 1, local.generateCalls)
	assert.Equal(t, 1, cloud.generateCalls)
}

func TestRouterFallsBackToLocalOnPreferenceError(t *testing.T) {
	local := &stubBackend{name: "local"}
	cloud := &stubBackend{name: "cloud"}
	r := newTestRouter(local, cloud, &prefStub{err: errors.New("store down")})

	out, err := r.Generate(context.Background(), &GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "local", out)
}

func TestRouterStreamRoutesPerCall(t *testing.T) {
	local := &stubBackend{name: "local"}
	cloud := &stubBackend{name: "cloud"}
	prefs := &prefStub{provider: ProviderCloud}
	r := newTestRouter(local, cloud, prefs)

	var completed string
	for ev := range r.GenerateStream(context.Background(), &GenerationRequest{Prompt: "hi"}) {
		if ev.Type == EventCompleted {
			completed = ev.Text
		}
	}
	assert.Equal(t, "cloud", completed)
}

func TestRouterCancelFansOut(t *testing.T) {
	local := &stubBackend{name: "local"}
	cloud := &stubBackend{name: "cloud"}
	r := newTestRouter(local, cloud, &prefStub{provider: ProviderLocal})

	r.CancelGeneration()

	assert.Equal(t, 1, local.cancelCalls)
	assert.Equal(t, 1, cloud.cancelCalls)
}

func TestRouterUnloadFansOut(t *testing.T) {
	local := &stubBackend{name: "local"}
	cloud := &stubBackend{name: "cloud", unloadErr: errors.New("cloud unload failed")}
	r := newTestRouter(local, cloud, &prefStub{provider: ProviderLocal})

	err := r.UnloadModel(context.Background())

	// Both backends are unloaded even when one fails.
	assert.Error(t, err)
	assert.Equal(t, 1, local.unloadCalls)
	assert.Equal(t, 1, cloud.unloadCalls)
}

func TestRouterIsModelLoaded(t *testing.T) {
	tests := []struct {
		name         string
		local, cloud bool
		want         bool
	}{
		{"neither", false, false, false},
		{"local only", true, false, true},
		{"cloud only", false, true, true},
		{"both", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(
				&stubBackend{loaded: tt.local},
				&stubBackend{loaded: tt.cloud},
				&prefStub{provider: ProviderLocal},
			)
			assert.Equal(t, tt.want, r.IsModelLoaded())
		})
	}
}

func TestRouterModelInfoPrefersLocal(t *testing.T) {
	localInfo := &ModelInfo{Name: "llama", LoadedAt: time.Now()}
	cloudInfo := &ModelInfo{Name: "gpt-4o-mini", LoadedAt: time.Now()}

	r := newTestRouter(&stubBackend{info: localInfo}, &stubBackend{info: cloudInfo}, &prefStub{})
	assert.Equal(t, "llama", r.ModelInfo().Name)

	r = newTestRouter(&stubBackend{}, &stubBackend{info: cloudInfo}, &prefStub{})
	assert.Equal(t, "gpt-4o-mini", r.ModelInfo().Name)

	r = newTestRouter(&stubBackend{}, &stubBackend{}, &prefStub{})
	assert.Nil(t, r.ModelInfo())
}

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderCloud, ParseProvider("cloud"))
	assert.Equal(t, ProviderCloud, ParseProvider(" Cloud "))
	assert.Equal(t, ProviderLocal, ParseProvider("local"))
	assert.Equal(t, ProviderLocal, ParseProvider(""))
	assert.Equal(t, ProviderLocal, ParseProvider("gibberish"))
}
