// Package capture ingests raw notification tuples into the message store.
package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/groupdigest/summary-platform/internal/model"
	"github.com/groupdigest/summary-platform/internal/store"
	"github.com/groupdigest/summary-platform/internal/triage"
	"github.com/groupdigest/summary-platform/pkg/logger"
	"github.com/groupdigest/summary-platform/pkg/metrics"
)

// CaptureStream is the slice of the stream manager the ingestor needs.
type CaptureStream interface {
	ConsumeCaptured(ctx context.Context, handler func(ctx context.Context, msg *model.CapturedMessage) error) (func(), error)
	PublishTriage(ctx context.Context, event *model.TriageEvent) error
}

// Ingestor consumes captured messages off the stream, persists them, and
// publishes a triage decision for each.
type Ingestor struct {
	streams  CaptureStream
	messages store.MessageStore
	scorer   *triage.Scorer
	log      *logger.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(streams CaptureStream, messages store.MessageStore, scorer *triage.Scorer, log *logger.Logger) *Ingestor {
	return &Ingestor{streams: streams, messages: messages, scorer: scorer, log: log}
}

// Start begins consuming captured messages. The returned stop function
// drains the consumer.
func (i *Ingestor) Start(ctx context.Context) (func(), error) {
	stop, err := i.streams.ConsumeCaptured(ctx, i.handle)
	if err != nil {
		return nil, fmt.Errorf("start capture consumer: %w", err)
	}
	i.log.Info("capture ingestion started")
	return stop, nil
}

func (i *Ingestor) handle(ctx context.Context, captured *model.CapturedMessage) error {
	msgType := captured.Type
	if msgType == "" {
		msgType = model.MessageTypeUnknown
	}

	msg := &model.Message{
		ThreadID:   captured.ThreadID,
		ThreadName: captured.ThreadName,
		Sender:     captured.Sender,
		Content:    captured.Content,
		Timestamp:  captured.Timestamp,
		Type:       msgType,
		IsDeleted:  captured.IsDeleted,
	}

	if err := i.messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("persist captured message: %w", err)
	}
	metrics.IngestedMessagesTotal.WithLabelValues(string(msgType)).Inc()

	// Triage is advisory; a scoring or publish hiccup must not force a
	// redelivery of an already-persisted message.
	if msg.Summarizable() {
		score := i.scorer.Score(ctx, msg.Content, msg.Sender)
		notify := score >= i.scorer.Threshold(ctx)
		if err := i.streams.PublishTriage(ctx, &model.TriageEvent{
			ThreadID:  msg.ThreadID,
			Sender:    msg.Sender,
			Score:     score,
			Notify:    notify,
			ScoredAt:  time.Now(),
			MessageID: msg.ID,
		}); err != nil {
			i.log.Warn("publish triage event failed",
				zap.String("thread_id", msg.ThreadID), zap.Error(err))
		}
	}

	return nil
}
