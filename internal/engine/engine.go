// Package engine provides the inference backends and the provider router.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider selects which backend serves generation calls.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderCloud Provider = "cloud"
)

// ParseProvider maps a stored preference value to a Provider, defaulting
// to local for anything unrecognized.
func ParseProvider(s string) Provider {
	if strings.EqualFold(strings.TrimSpace(s), string(ProviderCloud)) {
		return ProviderCloud
	}
	return ProviderLocal
}

// ProviderSource supplies the active provider preference. It is consulted
// on every router call so the user can switch providers between requests.
type ProviderSource interface {
	ActiveProvider(ctx context.Context) (Provider, error)
}

// CredentialSource supplies the cloud API credential.
type CredentialSource interface {
	CloudCredential(ctx context.Context) (string, error)
}

// GenerationRequest is one generation call. Ephemeral, never persisted.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// EventType tags a GenerationEvent.
type EventType string

const (
	EventStarted   EventType = "started"
	EventToken     EventType = "token"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// GenerationEvent is one element of a streaming generation. A well-formed
// stream is exactly one Started, zero or more Token events, and exactly one
// of Completed or Error, after which the channel closes.
type GenerationEvent struct {
	Type  EventType `json:"type"`
	Token string    `json:"token,omitempty"`
	Text  string    `json:"text,omitempty"` // full text, Completed only
	Err   *Error    `json:"-"`
	Error string    `json:"error,omitempty"`
}

// ModelInfo describes the currently loaded model.
type ModelInfo struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	ContextLength int       `json:"context_length"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Backend is the uniform capability surface over one concrete inference
// implementation. Both the on-device and the cloud variant satisfy it.
//
// External invariant: at most one generation call may be in flight per
// backend instance. Overlapping calls are not serialized here; the caller
// guards against them (the orchestrator holds a per-provider flight lock).
type Backend interface {
	// LoadModel prepares the backend. Idempotent: an already-loaded model
	// is unloaded first so resources never leak across loads.
	LoadModel(ctx context.Context, path string) error

	// Generate runs one bounded generation call. Each backend applies its
	// own hard timeout and best-effort cancels the underlying work on
	// every exit path.
	Generate(ctx context.Context, req *GenerationRequest) (string, error)

	// GenerateStream runs one generation call and delivers events over a
	// single-subscriber channel. Cancelling ctx aborts the backend work;
	// the channel always closes after the terminal event.
	GenerateStream(ctx context.Context, req *GenerationRequest) <-chan GenerationEvent

	// GenerateJSON asks for JSON-only output via an instructional prefix,
	// at low temperature and an enlarged token budget.
	GenerateJSON(ctx context.Context, prompt, schema string) (string, error)

	// CancelGeneration signals the in-flight generation, if any, to stop.
	// Non-blocking and safe to call with nothing in flight.
	CancelGeneration()

	// UnloadModel releases backend resources. Idempotent.
	UnloadModel(ctx context.Context) error

	IsModelLoaded() bool
	ModelInfo() *ModelInfo
}

const (
	jsonTemperature = 0.2
	jsonMaxTokens   = 2048
)

// jsonPrompt wraps a prompt with a JSON-only instruction. Grammar-level
// output constraints are deliberately not used for the local runtime; the
// instructional prefix is the behavior both backends share.
func jsonPrompt(prompt, schema string) string {
	var b strings.Builder
	b.WriteString("You are a JSON generator. Respond with a single valid JSON object and nothing else. ")
	b.WriteString("No prose, no markdown fences.\n\n")
	if schema != "" {
		fmt.Fprintf(&b, "The object must match this schema:\n%s\n\n", schema)
	}
	b.WriteString(prompt)
	return b.String()
}

// jsonRequest builds the GenerationRequest for a GenerateJSON call.
func jsonRequest(prompt, schema string) *GenerationRequest {
	return &GenerationRequest{
		Prompt:      jsonPrompt(prompt, schema),
		MaxTokens:   jsonMaxTokens,
		Temperature: jsonTemperature,
	}
}
