package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/internal/prompt"
	"github.com/groupdigest/summary-platform/internal/triage"
	"github.com/groupdigest/summary-platform/pkg/logger"
)

type fakeStream struct {
	handler    func(ctx context.Context, msg *model.CapturedMessage) error
	triage     []*model.TriageEvent
	publishErr error
}

func (f *fakeStream) ConsumeCaptured(ctx context.Context, handler func(ctx context.Context, msg *model.CapturedMessage) error) (func(), error) {
	f.handler = handler
	return func() {}, nil
}

func (f *fakeStream) PublishTriage(ctx context.Context, event *model.TriageEvent) error {
	f.triage = append(f.triage, event)
	return f.publishErr
}

type fakeMessages struct {
	created   []*model.Message
	createErr error
}

func (f *fakeMessages) CreateMessage(ctx context.Context, msg *model.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeMessages) ListMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeMessages) ListRecentMessages(ctx context.Context, threadID string, limit int) ([]model.Message, error) {
	return nil, nil
}

type noEngine struct{}

func (noEngine) Generate(ctx context.Context, req *engine.GenerationRequest) (string, error) {
	return "", errors.New("unavailable")
}

func (noEngine) IsModelLoaded() bool { return false }

type fixedThreshold struct{ value float64 }

func (f fixedThreshold) ImportanceThreshold(ctx context.Context) (float64, error) {
	return f.value, nil
}

func newTestIngestor(t *testing.T, stream *fakeStream, messages *fakeMessages) func(ctx context.Context, msg *model.CapturedMessage) error {
	t.Helper()
	scorer := triage.NewScorer(noEngine{}, fixedThreshold{value: 0.6}, prompt.NewBuilder(), logger.NewNop())
	ing := NewIngestor(stream, messages, scorer, logger.NewNop())

	stop, err := ing.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(stop)
	require.NotNil(t, stream.handler)
	return stream.handler
}

func captured(content string) *model.CapturedMessage {
	return &model.CapturedMessage{
		ThreadID:   "t1",
		ThreadName: "Test Group",
		Sender:     "Alice",
		Content:    content,
		Timestamp:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Type:       model.MessageTypeText,
	}
}

func TestIngestPersistsAndPublishesTriage(t *testing.T) {
	stream := &fakeStream{}
	messages := &fakeMessages{}
	handle := newTestIngestor(t, stream, messages)

	require.NoError(t, handle(context.Background(), captured("asap everyone, the game moved up an hour")))

	require.Len(t, messages.created, 1)
	assert.Equal(t, "t1", messages.created[0].ThreadID)
	assert.Equal(t, model.MessageTypeText, messages.created[0].Type)

	require.Len(t, stream.triage, 1)
	assert.InDelta(t, 0.9, stream.triage[0].Score, 1e-9)
	assert.True(t, stream.triage[0].Notify)
}

func TestIngestTrivialMessageSuppressed(t *testing.T) {
	stream := &fakeStream{}
	messages := &fakeMessages{}
	handle := newTestIngestor(t, stream, messages)

	require.NoError(t, handle(context.Background(), captured("lol")))

	require.Len(t, stream.triage, 1)
	assert.InDelta(t, 0.1, stream.triage[0].Score, 1e-9)
	assert.False(t, stream.triage[0].Notify)
}

func TestIngestDefaultsUnknownType(t *testing.T) {
	stream := &fakeStream{}
	messages := &fakeMessages{}
	handle := newTestIngestor(t, stream, messages)

	msg := captured("something")
	msg.Type = ""
	require.NoError(t, handle(context.Background(), msg))

	require.Len(t, messages.created, 1)
	assert.Equal(t, model.MessageTypeUnknown, messages.created[0].Type)
}

func TestIngestSkipsTriageForNonSummarizable(t *testing.T) {
	stream := &fakeStream{}
	messages := &fakeMessages{}
	handle := newTestIngestor(t, stream, messages)

	msg := captured("Bob joined the group")
	msg.Type = model.MessageTypeSystem
	require.NoError(t, handle(context.Background(), msg))

	require.Len(t, messages.created, 1)
	assert.Empty(t, stream.triage)
}

func TestIngestStoreFailureForcesRedelivery(t *testing.T) {
	stream := &fakeStream{}
	messages := &fakeMessages{createErr: errors.New("disk full")}
	handle := newTestIngestor(t, stream, messages)

	err := handle(context.Background(), captured("hello there everyone"))

	assert.Error(t, err)
	assert.Empty(t, stream.triage)
}

func TestIngestTriagePublishFailureIsAdvisory(t *testing.T) {
	stream := &fakeStream{publishErr: errors.New("nats down")}
	messages := &fakeMessages{}
	handle := newTestIngestor(t, stream, messages)

	// The message is already persisted; a publish failure must not bounce it
	// back onto the stream.
	assert.NoError(t, handle(context.Background(), captured("please bring the projector")))
	require.Len(t, messages.created, 1)
}
