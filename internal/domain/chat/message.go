package chat

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrContentRequired = errors.New("chat: message content is required")
	ErrContentTooLong  = errors.New("chat: message content exceeds limit")
)

// MaxContentRunes bounds a single message body.
const MaxContentRunes = 4000

// PreviewRunes bounds the last-message snippet stored on a conversation.
const PreviewRunes = 500

type MessageID string

// Message is one immutable, directed text entry inside a conversation.
// Seq is assigned by the store and breaks created_at ties, so ordering by
// (created_at, seq) is total and stable.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Seq            int64
	SenderID       string
	ReceiverID     string
	Content        string
	CreatedAt      time.Time
	IsRead         bool
}

// ValidateContent trims the body and enforces the non-empty and length rules.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

// Preview shortens content for conversation list previews.
func Preview(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= PreviewRunes {
		return string(runes)
	}
	return string(runes[:PreviewRunes])
}
