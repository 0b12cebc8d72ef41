package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

// cloudGenerateTimeout bounds typical API latency. Not caller-configurable.
const cloudGenerateTimeout = 30 * time.Second

// defaultCloudModel is used when configuration names no cloud model.
const defaultCloudModel = "gpt-4o-mini"

// CloudBackend serves generation through the chat-completion HTTP API.
// "Loading a model" here means validating that an API credential exists;
// the remote service owns the actual model lifecycle.
type CloudBackend struct {
	creds   CredentialSource
	model   string
	baseURL string
	log     *logger.Logger

	mu     sync.Mutex
	client *openai.Client
	info   *ModelInfo

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewCloudBackend creates a cloud backend. model names the remote chat
// model; baseURL overrides the API endpoint when non-empty.
func NewCloudBackend(creds CredentialSource, model, baseURL string, log *logger.Logger) *CloudBackend {
	if model == "" {
		model = defaultCloudModel
	}
	return &CloudBackend{creds: creds, model: model, baseURL: baseURL, log: log}
}

// LoadModel validates the credential and prepares the HTTP client. The
// path argument is ignored; it exists for contract symmetry with the local
// backend.
func (b *CloudBackend) LoadModel(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-reading the credential on every load lets a re-entered key take
	// effect without restarting.
	b.client = nil
	b.info = nil

	key, err := b.creds.CloudCredential(ctx)
	if err != nil {
		return ErrModelLoadFailed("read cloud credential", err)
	}
	if strings.TrimSpace(key) == "" {
		return ErrModelLoadFailed("cloud API key not configured", nil)
	}

	cfg := openai.DefaultConfig(key)
	if b.baseURL != "" {
		cfg.BaseURL = b.baseURL
	}
	b.client = openai.NewClientWithConfig(cfg)
	b.info = &ModelInfo{
		Name:     b.model,
		LoadedAt: time.Now(),
	}
	b.log.Info("cloud backend ready", zap.String("model", b.model))
	return nil
}

// Generate runs one chat-completion call under the cloud timeout ceiling.
// An in-flight HTTP request cannot be aborted mid-response by the remote
// side; cancellation abandons it and the deadline reaps it.
func (b *CloudBackend) Generate(ctx context.Context, req *GenerationRequest) (string, error) {
	return b.complete(ctx, req, nil)
}

// GenerateStream streams chat-completion deltas as GenerationEvents.
func (b *CloudBackend) GenerateStream(ctx context.Context, req *GenerationRequest) <-chan GenerationEvent {
	events := make(chan GenerationEvent, 16)

	go func() {
		defer close(events)

		if !emit(ctx, events, GenerationEvent{Type: EventStarted}) {
			return
		}

		client := b.activeClient()
		if client == nil {
			emit(ctx, events, errorEvent(ErrModelNotLoaded()))
			return
		}

		gctx, cancel := context.WithTimeout(ctx, cloudGenerateTimeout)
		b.setCancel(cancel)
		defer func() {
			b.clearCancel()
			cancel()
		}()

		stream, err := client.CreateChatCompletionStream(gctx, b.chatRequest(req, nil, true))
		if err != nil {
			emit(ctx, events, errorEvent(mapCloudError(gctx, err)))
			return
		}
		defer stream.Close()

		var full strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(ctx, events, errorEvent(mapCloudError(gctx, err)))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			metrics.GenerationTokensTotal.WithLabelValues(string(ProviderCloud)).Inc()
			if !emit(ctx, events, GenerationEvent{Type: EventToken, Token: delta}) {
				return
			}
		}
		emit(ctx, events, GenerationEvent{Type: EventCompleted, Text: full.String()})
	}()

	return events
}

// GenerateJSON uses the API's JSON mode plus the shared instruction prefix,
// so malformed output stays rare and the two backends behave alike.
func (b *CloudBackend) GenerateJSON(ctx context.Context, prompt, schema string) (string, error) {
	return b.complete(ctx, jsonRequest(prompt, schema), &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

// CancelGeneration abandons the in-flight call, if any.
func (b *CloudBackend) CancelGeneration() {
	b.cancelMu.Lock()
	cancel := b.cancel
	b.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// UnloadModel drops the client and cached credential state. Idempotent.
func (b *CloudBackend) UnloadModel(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil
	b.info = nil
	return nil
}

func (b *CloudBackend) IsModelLoaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client != nil
}

func (b *CloudBackend) ModelInfo() *ModelInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return nil
	}
	info := *b.info
	return &info
}

func (b *CloudBackend) complete(ctx context.Context, req *GenerationRequest, format *openai.ChatCompletionResponseFormat) (string, error) {
	client := b.activeClient()
	if client == nil {
		return "", ErrModelNotLoaded()
	}

	gctx, cancel := context.WithTimeout(ctx, cloudGenerateTimeout)
	b.setCancel(cancel)
	defer func() {
		b.clearCancel()
		cancel()
	}()

	resp, err := client.CreateChatCompletion(gctx, b.chatRequest(req, format, false))
	if err != nil {
		return "", mapCloudError(gctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrInvalidResponse("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *CloudBackend) chatRequest(req *GenerationRequest, format *openai.ChatCompletionResponseFormat, stream bool) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return openai.ChatCompletionRequest{
		Model:          b.model,
		Messages:       messages,
		MaxTokens:      req.MaxTokens,
		Temperature:    float32(req.Temperature),
		Stream:         stream,
		ResponseFormat: format,
	}
}

func (b *CloudBackend) activeClient() *openai.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

func (b *CloudBackend) setCancel(cancel context.CancelFunc) {
	b.cancelMu.Lock()
	b.cancel = cancel
	b.cancelMu.Unlock()
}

func (b *CloudBackend) clearCancel() {
	b.cancelMu.Lock()
	b.cancel = nil
	b.cancelMu.Unlock()
}

// mapCloudError translates transport symptoms into the engine taxonomy so
// callers can tell a bad key from a rate limit from a timeout.
func mapCloudError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return ErrGenerationFailed("invalid credential", err)
		case http.StatusTooManyRequests:
			return ErrGenerationFailed("rate limit exceeded, retry later", err)
		}
		return ErrGenerationFailed(apiErr.Message, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrGenerationTimeout(err)
	case errors.Is(err, context.Canceled):
		return ErrGenerationFailed("generation cancelled", err)
	}
	return ErrGenerationFailed(err.Error(), err)
}
