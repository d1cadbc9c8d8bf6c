package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrParticipantRequired = errors.New("chat: both participant ids are required")
	ErrSameParticipant     = errors.New("chat: cannot start a conversation with yourself")
	ErrPropertyRequired    = errors.New("chat: property id is required")
	ErrNotParticipant      = errors.New("chat: user is not a conversation participant")
)

type ConversationID string

// Conversation is the unique thread between two users about one property.
// Participants are stored in canonical order so the (property, pair) key is
// the same no matter who wrote first.
type Conversation struct {
	ID              ConversationID
	PropertyID      string
	ParticipantA    string
	ParticipantB    string
	CreatedAt       time.Time
	LastMessageAt   time.Time
	LastSenderID    string
	LastMessageText string
}

type CreateConversationParams struct {
	ID         ConversationID
	PropertyID string
	UserA      string
	UserB      string
	Now        time.Time
}

// NewConversation validates participants and returns a conversation with the
// pair already canonicalized.
func NewConversation(params CreateConversationParams) (*Conversation, error) {
	propertyID := strings.TrimSpace(params.PropertyID)
	if propertyID == "" {
		return nil, ErrPropertyRequired
	}
	low, high, err := CanonicalPair(params.UserA, params.UserB)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Conversation{
		ID:            params.ID,
		PropertyID:    propertyID,
		ParticipantA:  low,
		ParticipantB:  high,
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// CanonicalPair trims and orders two distinct user ids.
func CanonicalPair(a, b string) (string, string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", ErrParticipantRequired
	}
	if a == b {
		return "", "", ErrSameParticipant
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

// PairKey is the uniqueness key for the (property, unordered pair) triple.
func PairKey(propertyID, userA, userB string) (string, error) {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return "", ErrPropertyRequired
	}
	low, high, err := CanonicalPair(userA, userB)
	if err != nil {
		return "", err
	}
	return propertyID + "|" + low + "|" + high, nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && (userID == c.ParticipantA || userID == c.ParticipantB)
}

// OtherParticipant returns the peer of userID, or ErrNotParticipant.
func (c *Conversation) OtherParticipant(userID string) (string, error) {
	switch strings.TrimSpace(userID) {
	case c.ParticipantA:
		return c.ParticipantB, nil
	case c.ParticipantB:
		return c.ParticipantA, nil
	default:
		return "", ErrNotParticipant
	}
}

func (c *Conversation) LastActivity() time.Time {
	if !c.LastMessageAt.IsZero() {
		return c.LastMessageAt
	}
	return c.CreatedAt
}
