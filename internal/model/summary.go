package model

import (
	"time"
)

// Priority ranks an action item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ActionItem is a task extracted from a conversation.
type ActionItem struct {
	Task       string   `json:"task"`
	AssignedTo string   `json:"assigned_to,omitempty"`
	Priority   Priority `json:"priority"`
}

// ParticipantHighlight captures a notable contribution by one participant.
type ParticipantHighlight struct {
	Participant  string `json:"participant"`
	Contribution string `json:"contribution"`
}

// Summary is the persisted result of one summarization run. Immutable once
// created. StartTimestamp/EndTimestamp and MessageCount describe only the
// messages that actually fed the prompt, not the raw thread contents.
type Summary struct {
	ID                    string                 `json:"id"`
	ThreadID              string                 `json:"thread_id"`
	ThreadName            string                 `json:"thread_name"`
	Overview              string                 `json:"overview"`
	KeyTopics             []string               `json:"key_topics"`
	ActionItems           []ActionItem           `json:"action_items"`
	Announcements         []string               `json:"announcements"`
	ParticipantHighlights []ParticipantHighlight `json:"participant_highlights"`
	MessageCount          int                    `json:"message_count"`
	StartTimestamp        time.Time              `json:"start_timestamp"`
	EndTimestamp          time.Time              `json:"end_timestamp"`
	GeneratedAt           time.Time              `json:"generated_at"`
	RawModelResponse      string                 `json:"raw_model_response,omitempty"`
}
