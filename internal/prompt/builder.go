// Package prompt builds bounded, model-safe prompts from message streams.
package prompt

import (
	"fmt"
	"strings"

	"github.com/groupdigest/summary-platform/internal/model"
)

const (
	// maxTranscriptChars bounds prompt size for context-window safety.
	// Messages render oldest-first, so truncation drops the end of the
	// conversation. A trade-off, not a bug: the cap wins.
	maxTranscriptChars = 5000

	truncationMarker = "\n[transcript truncated]"

	// EmptySentinel is returned when nothing summarizable remains after
	// filtering. Callers must treat it as terminal, not retry with it.
	EmptySentinel = "NO_MESSAGES_TO_SUMMARIZE"

	timestampLayout = "Jan 2 15:04"
)

// Builder renders message lists into prompts.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Filter drops messages that carry nothing worth summarizing: deleted
// messages and system notices.
func Filter(messages []model.Message) []model.Message {
	kept := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Summarizable() {
			kept = append(kept, m)
		}
	}
	return kept
}

// Summarization renders the filtered messages into the instructional
// summarization template, or EmptySentinel when nothing survives the
// filter.
func (b *Builder) Summarization(messages []model.Message, threadName string) string {
	kept := Filter(messages)
	if len(kept) == 0 {
		return EmptySentinel
	}

	lines := make([]string, 0, len(kept))
	for _, m := range kept {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			m.Timestamp.Format(timestampLayout), m.Sender, renderContent(&m)))
	}

	transcript := strings.Join(lines, "\n")
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars] + truncationMarker
	}

	var p strings.Builder
	fmt.Fprintf(&p, "Summarize this group chat conversation from %q.\n\n", threadName)
	p.WriteString("Conversation:\n")
	p.WriteString(transcript)
	p.WriteString("\n\nRespond with exactly these four labeled sections:\n")
	p.WriteString("OVERVIEW: one or two sentences describing the conversation.\n")
	p.WriteString("TOPICS: the main topics discussed, one per line.\n")
	p.WriteString("ACTIONS: tasks or commitments mentioned, one per line.\n")
	p.WriteString("ANNOUNCEMENTS: announcements made, one per line.\n")
	return p.String()
}

// Scoring builds the compact importance-scoring prompt. The model is asked
// for a bare integer so a tiny token budget suffices.
func (b *Builder) Scoring(content, sender string) string {
	var p strings.Builder
	p.WriteString("Rate how important this group chat message is on a scale of 0 to 10.\n")
	p.WriteString("0 means ignorable chatter, 10 means urgent and requires attention.\n")
	fmt.Fprintf(&p, "Message from %s: %q\n", sender, content)
	p.WriteString("Respond with only the number.")
	return p.String()
}

// renderContent substitutes a placeholder tag for non-text payloads.
func renderContent(m *model.Message) string {
	switch m.Type {
	case model.MessageTypeText, model.MessageTypeUnknown:
		return m.Content
	case model.MessageTypeImage:
		return "[Image]"
	case model.MessageTypeVideo:
		return "[Video]"
	case model.MessageTypeDocument:
		return "[Document]"
	case model.MessageTypeAudio:
		return "[Audio]"
	case model.MessageTypeLocation:
		return "[Location]"
	case model.MessageTypeContact:
		return "[Contact]"
	case model.MessageTypeSticker:
		return "[Sticker]"
	default:
		return m.Content
	}
}
