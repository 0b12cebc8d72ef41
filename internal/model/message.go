// Package model defines data structures for the summary platform.
package model

import (
	"time"
)

// MessageType classifies the payload of a captured group message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeDeleted  MessageType = "deleted"
	MessageTypeSystem   MessageType = "system"
	MessageTypeUnknown  MessageType = "unknown"
)

// Message is a single captured group-chat message. Messages are immutable
// once stored; retention cleanup is the only thing that removes them.
type Message struct {
	ID         string      `json:"id"`
	ThreadID   string      `json:"thread_id"`
	ThreadName string      `json:"thread_name"`
	Sender     string      `json:"sender"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       MessageType `json:"type"`
	IsDeleted  bool        `json:"is_deleted"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Summarizable reports whether the message carries content worth feeding
// into a prompt. Deleted and system messages never do.
func (m *Message) Summarizable() bool {
	if m.IsDeleted {
		return false
	}
	return m.Type != MessageTypeDeleted && m.Type != MessageTypeSystem
}

// Thread is a group-chat conversation known to the platform.
type Thread struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// ListThreadsResponse is the response for listing threads.
type ListThreadsResponse struct {
	Threads []Thread `json:"threads"`
	Total   int      `json:"total"`
}
