package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/pkg/logger"
)

type credStub struct {
	key string
	err error
}

func (c credStub) CloudCredential(ctx context.Context) (string, error) {
	return c.key, c.err
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCloudLoadModelRequiresCredential(t *testing.T) {
	tests := []struct {
		name  string
		creds credStub
	}{
		{"empty key", credStub{key: ""}},
		{"whitespace key", credStub{key: "   "}},
		{"read failure", credStub{err: errors.New("store down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCloudBackend(tt.creds, "", "", logger.NewNop())

			err := b.LoadModel(context.Background(), "")

			assert.Equal(t, KindModelLoadFailed, KindOf(err))
			assert.False(t, b.IsModelLoaded())
		})
	}
}

func TestCloudLoadModel(t *testing.T) {
	b := NewCloudBackend(credStub{key: "sk-test"}, "gpt-4o-mini", "", logger.NewNop())

	require.NoError(t, b.LoadModel(context.Background(), ""))

	assert.True(t, b.IsModelLoaded())
	info := b.ModelInfo()
	require.NotNil(t, info)
	assert.Equal(t, "gpt-4o-mini", info.Name)
}

func TestCloudLoadModelRereadsCredential(t *testing.T) {
	creds := &credStub{key: "sk-first"}
	b := NewCloudBackend(creds, "", "", logger.NewNop())
	require.NoError(t, b.LoadModel(context.Background(), ""))
	assert.True(t, b.IsModelLoaded())

	// A key removed between loads must fail the next load, not keep the
	// stale client around.
	creds.key = ""
	err := b.LoadModel(context.Background(), "")
	assert.Equal(t, KindModelLoadFailed, KindOf(err))
	assert.False(t, b.IsModelLoaded())
}

func TestCloudGenerateWithoutLoad(t *testing.T) {
	b := NewCloudBackend(credStub{key: "sk-test"}, "", "", logger.NewNop())

	_, err := b.Generate(context.Background(), &GenerationRequest{Prompt: "hi"})

	assert.Equal(t, KindModelNotLoaded, KindOf(err))
}

func TestCloudUnloadModel(t *testing.T) {
	b := NewCloudBackend(credStub{key: "sk-test"}, "", "", logger.NewNop())
	require.NoError(t, b.LoadModel(context.Background(), ""))

	require.NoError(t, b.UnloadModel(context.Background()))
	assert.False(t, b.IsModelLoaded())
	assert.Nil(t, b.ModelInfo())

	require.NoError(t, b.UnloadModel(context.Background()))
}

func TestCloudGenerateStreamWithoutCredential(t *testing.T) {
	b := NewCloudBackend(credStub{}, "", "", logger.NewNop())

	var got []GenerationEvent
	for ev := range b.GenerateStream(context.Background(), &GenerationRequest{Prompt: "hi"}) {
		got = append(got, ev)
	}

	// Started leads even on streams that fail before generation begins.
	require.Len(t, got, 2)
	assert.Equal(t, EventStarted, got[0].Type)
	assert.Equal(t, EventError, got[1].Type)
	require.NotNil(t, got[1].Err)
	assert.Equal(t, KindModelNotLoaded, got[1].Err.Kind)
}

func TestCloudDefaultModel(t *testing.T) {
	b := NewCloudBackend(credStub{key: "sk-test"}, "", "", logger.NewNop())
	require.NoError(t, b.LoadModel(context.Background(), ""))
	assert.Equal(t, defaultCloudModel, b.ModelInfo().Name)
}

func TestMapCloudError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "unauthorized",
			err:      &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "Incorrect API key"},
			wantKind: KindGenerationFailed,
			wantMsg:  "invalid credential",
		},
		{
			name:     "rate limited",
			err:      &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "Rate limit reached"},
			wantKind: KindGenerationFailed,
			wantMsg:  "rate limit exceeded, retry later",
		},
		{
			name:     "other api error",
			err:      &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "server error"},
			wantKind: KindGenerationFailed,
			wantMsg:  "server error",
		},
		{
			name:     "network timeout",
			err:      timeoutErr{},
			wantKind: KindGenerationTimeout,
		},
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			wantKind: KindGenerationTimeout,
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			wantKind: KindGenerationFailed,
			wantMsg:  "cancelled",
		},
		{
			name:     "generic",
			err:      errors.New("connection refused"),
			wantKind: KindGenerationFailed,
			wantMsg:  "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapCloudError(context.Background(), tt.err)

			assert.Equal(t, tt.wantKind, KindOf(got))
			if tt.wantMsg != "" {
				assert.Contains(t, got.Error(), tt.wantMsg)
			}
		})
	}
}

func TestMapCloudErrorContextDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The surrounding context ending with DeadlineExceeded dominates
	// whatever transport error surfaced.
	dctx, dcancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Hour))
	defer dcancel()

	got := mapCloudError(dctx, errors.New("unexpected EOF"))
	assert.Equal(t, KindGenerationTimeout, KindOf(got))

	got = mapCloudError(ctx, context.Canceled)
	assert.Equal(t, KindGenerationFailed, KindOf(got))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrGenerationTimeout(nil)))
	assert.False(t, IsTransient(ErrGenerationFailed("invalid credential", nil)))
	assert.False(t, IsTransient(ErrModelNotFound("/x")))
	assert.False(t, IsTransient(errors.New("plain")))
}
