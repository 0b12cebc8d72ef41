package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateThreadID validates a thread identifier. Thread IDs come from the
// messaging platform, so they are opaque strings, not UUIDs.
func ValidateThreadID(id string) error {
	if len(id) == 0 {
		return errors.New("thread ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("thread ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("thread ID must be valid UTF-8")
	}
	return nil
}

// ValidateContent validates message content submitted for scoring.
func ValidateContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSender validates a sender display name.
func ValidateSender(sender string) error {
	if len(sender) > 256 {
		return errors.New("sender exceeds maximum length")
	}
	if !utf8.ValidString(sender) {
		return errors.New("sender must be valid UTF-8")
	}
	return nil
}
