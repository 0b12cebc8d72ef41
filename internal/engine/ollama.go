package engine

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaRuntime serves the local provider through an Ollama server on the
// device. Model files are addressed by path; the runtime resolves the path
// to the model name Ollama knows it by.
type OllamaRuntime struct {
	client *api.Client
	model  string
}

// NewOllamaRuntime creates a runtime against the given host, or the
// OLLAMA_HOST environment default when host is empty.
func NewOllamaRuntime(host string) (*OllamaRuntime, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client from environment: %w", err)
		}
		return &OllamaRuntime{client: client}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	return &OllamaRuntime{client: api.NewClient(base, http.DefaultClient)}, nil
}

// modelName resolves a model file path to its Ollama model name.
func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load verifies the model is known to the server and reads its metadata.
// A missing model surfaces as fs.ErrNotExist so the backend can map it.
func (r *OllamaRuntime) Load(ctx context.Context, path string) (*RuntimeInfo, error) {
	name := modelName(path)

	resp, err := r.client.Show(ctx, &api.ShowRequest{Model: name})
	if err != nil {
		var statusErr api.StatusError
		if ok := asStatusError(err, &statusErr); ok && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("model %q: %w", name, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("show model %q: %w", name, err)
	}

	r.model = name
	return &RuntimeInfo{
		Model:         name,
		ContextLength: contextLength(resp.ModelInfo),
	}, nil
}

// Generate streams tokens from the server. Cancelling ctx aborts the HTTP
// request, which stops generation server-side.
func (r *OllamaRuntime) Generate(ctx context.Context, req *RuntimeRequest, onToken func(token string)) (string, error) {
	if r.model == "" {
		return "", fmt.Errorf("no model loaded")
	}

	stream := true
	var full strings.Builder

	err := r.client.Generate(ctx, &api.GenerateRequest{
		Model:  r.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}, func(resp api.GenerateResponse) error {
		if resp.Response != "" {
			full.WriteString(resp.Response)
			if onToken != nil {
				onToken(resp.Response)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

// Unload forgets the active model. The Ollama server evicts idle models on
// its own, so there is nothing to release remotely.
func (r *OllamaRuntime) Unload(ctx context.Context) error {
	r.model = ""
	return nil
}

func asStatusError(err error, target *api.StatusError) bool {
	if se, ok := err.(api.StatusError); ok {
		*target = se
		return true
	}
	return false
}

// contextLength digs the context window out of the model metadata, which
// keys it under an architecture-specific name like "llama.context_length".
func contextLength(info map[string]any) int {
	for key, val := range info {
		if !strings.HasSuffix(key, ".context_length") {
			continue
		}
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}
