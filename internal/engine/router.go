package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/pkg/logger"
)

// Router fronts both backends behind the Backend interface. Every call
// re-reads the provider preference, so the user can switch providers
// between requests without a reload. The router never touches a model
// handle itself; it only forwards.
type Router struct {
	local Backend
	cloud Backend
	prefs ProviderSource
	log   *logger.Logger
}

// NewRouter creates a router over the two backend instances.
func NewRouter(local, cloud Backend, prefs ProviderSource, log *logger.Logger) *Router {
	return &Router{local: local, cloud: cloud, prefs: prefs, log: log}
}

// active resolves the backend for this call. A preference-read failure
// falls back to local rather than failing the call outright.
func (r *Router) active(ctx context.Context) Backend {
	provider, err := r.prefs.ActiveProvider(ctx)
	if err != nil {
		r.log.Warn("provider preference unavailable, using local", zap.Error(err))
		return r.local
	}
	if provider == ProviderCloud {
		return r.cloud
	}
	return r.local
}

// Backend returns the backend for the given provider. Used by callers that
// need to address one variant directly.
func (r *Router) Backend(provider Provider) Backend {
	if provider == ProviderCloud {
		return r.cloud
	}
	return r.local
}

func (r *Router) LoadModel(ctx context.Context, path string) error {
	return r.active(ctx).LoadModel(ctx, path)
}

func (r *Router) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	return r.active(ctx).Generate(ctx, req)
}

// GenerateStream routes through the same per-call provider lookup as the
// non-streaming entry points.
func (r *Router) GenerateStream(ctx context.Context, req *GenerationRequest) <-chan GenerationEvent {
	return r.active(ctx).GenerateStream(ctx, req)
}

func (r *Router) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return r.active(ctx).GenerateJSON(ctx, prompt, schema)
}

// CancelGeneration fans out to both backends. Cancellation is idempotent
// and cheap, and hitting the inactive backend too avoids leaking an
// in-flight call across a provider switch.
func (r *Router) CancelGeneration() {
	r.local.CancelGeneration()
	r.cloud.CancelGeneration()
}

// UnloadModel fans out to both backends for the same reason.
func (r *Router) UnloadModel(ctx context.Context) error {
	return errors.Join(r.local.UnloadModel(ctx), r.cloud.UnloadModel(ctx))
}

// IsModelLoaded reports whether either backend holds a model.
func (r *Router) IsModelLoaded() bool {
	return r.local.IsModelLoaded() || r.cloud.IsModelLoaded()
}

// ModelInfo surfaces at most one active model. Local wins when both
// backends would report one, which normal operation avoids.
func (r *Router) ModelInfo() *ModelInfo {
	if info := r.local.ModelInfo(); info != nil {
		return info
	}
	return r.cloud.ModelInfo()
}
