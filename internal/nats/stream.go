package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

const (
	// StreamName is the name of the capture-and-events stream.
	StreamName = "GROUPCHAT"

	// SubjectPrefix is the prefix for all platform subjects.
	SubjectPrefix = "chat"

	// captureConsumer is the durable consumer that feeds the ingestor.
	captureConsumer = "capture-ingest"
)

// StreamManager handles JetStream stream operations for captured messages
// and platform events.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the platform stream exists with proper
// configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Captured group messages and summary/triage events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// StreamInfo reports the stream state and refreshes the stream gauge.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	s, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("lookup stream: %w", err)
	}
	info, err := s.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream info: %w", err)
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	return info, nil
}

// CaptureSubject returns the subject for a captured message.
func CaptureSubject(threadID string) string {
	return fmt.Sprintf("%s.capture.%s", SubjectPrefix, threadID)
}

// SummarySubject returns the subject for a summary event.
func SummarySubject(threadID string) string {
	return fmt.Sprintf("%s.summary.%s", SubjectPrefix, threadID)
}

// TriageSubject returns the subject for a triage event.
func TriageSubject(threadID string) string {
	return fmt.Sprintf("%s.triage.%s", SubjectPrefix, threadID)
}

// PublishCaptured publishes a raw captured message for ingestion.
func (m *StreamManager) PublishCaptured(ctx context.Context, msg *model.CapturedMessage) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal captured message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, CaptureSubject(msg.ThreadID), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish captured message: %w", err)
	}
	return ack.Sequence, nil
}

// PublishSummary publishes a summary-completed event.
func (m *StreamManager) PublishSummary(ctx context.Context, event *model.SummaryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal summary event: %w", err)
	}
	if _, err := m.client.JetStream().Publish(ctx, SummarySubject(event.ThreadID), data); err != nil {
		return fmt.Errorf("failed to publish summary event: %w", err)
	}
	return nil
}

// PublishTriage publishes a triage decision event.
func (m *StreamManager) PublishTriage(ctx context.Context, event *model.TriageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal triage event: %w", err)
	}
	if _, err := m.client.JetStream().Publish(ctx, TriageSubject(event.ThreadID), data); err != nil {
		return fmt.Errorf("failed to publish triage event: %w", err)
	}
	return nil
}

// ConsumeCaptured delivers captured messages to handler through a durable
// consumer. Messages the handler rejects are redelivered. The returned
// stop function drains the consumer.
func (m *StreamManager) ConsumeCaptured(ctx context.Context, handler func(ctx context.Context, msg *model.CapturedMessage) error) (func(), error) {
	js := m.client.JetStream()

	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       captureConsumer,
		FilterSubject: fmt.Sprintf("%s.capture.>", SubjectPrefix),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create capture consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var captured model.CapturedMessage
		if err := json.Unmarshal(msg.Data(), &captured); err != nil {
			// Malformed payloads never become valid; drop them.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &captured); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start capture consumer: %w", err)
	}

	return cc.Drain, nil
}
