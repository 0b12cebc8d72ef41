package model

import (
	"time"
)

// CapturedMessage is the raw tuple delivered by the notification-capture
// collaborator over the ingest stream. It carries no storage identity yet.
type CapturedMessage struct {
	ThreadID   string      `json:"thread_id"`
	ThreadName string      `json:"thread_name"`
	Sender     string      `json:"sender"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       MessageType `json:"type"`
	IsDeleted  bool        `json:"is_deleted"`
}

// SummaryEvent announces a completed summarization run.
type SummaryEvent struct {
	SummaryID    string    `json:"summary_id"`
	ThreadID     string    `json:"thread_id"`
	MessageCount int       `json:"message_count"`
	Provider     string    `json:"provider"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// TriageEvent records an importance-scoring decision for one message.
type TriageEvent struct {
	ThreadID  string    `json:"thread_id"`
	Sender    string    `json:"sender"`
	Score     float64   `json:"score"`
	Notify    bool      `json:"notify"`
	ScoredAt  time.Time `json:"scored_at"`
	MessageID string    `json:"message_id,omitempty"`
}
