package chat

import (
	"context"
	"time"

	domainchat "renthub/internal/domain/chat"
)

// Store ports. Adapters translate backend failures into gRPC status errors:
// codes.NotFound for missing records, codes.DeadlineExceeded when the context
// expired mid-call, codes.Unavailable for everything transient. The service
// layer adds the business codes on top and never invents new ones.

// ConversationStore resolves and creates threads.
type ConversationStore interface {
	// ByID loads a conversation or returns NotFound.
	ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error)
	// FindByTriple locates the thread for a property and unordered user pair,
	// or returns NotFound.
	FindByTriple(ctx context.Context, propertyID, userA, userB string) (*domainchat.Conversation, error)
	// FindOrCreate is atomic with respect to the (property, pair) uniqueness
	// invariant: concurrent calls for the same triple yield one conversation.
	// The bool reports whether this call created it.
	FindOrCreate(ctx context.Context, propertyID, userA, userB string, now time.Time) (*domainchat.Conversation, bool, error)
	// ListForUser returns the user's conversations, most recent activity first.
	ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error)
}

// MessageLog is the append-only message store for a conversation.
type MessageLog interface {
	// Append persists a message, derives the receiver from the conversation's
	// other participant and bumps the conversation's last_message_at in the
	// same unit of work. Content is assumed validated.
	Append(ctx context.Context, conversationID domainchat.ConversationID, senderID, content string, now time.Time) (*domainchat.Message, error)
	// ListOrdered returns every message oldest first, ordered by created_at
	// with insertion sequence breaking ties.
	ListOrdered(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error)
}

// ReadStateTracker maintains per-receiver read flags and unread counts.
type ReadStateTracker interface {
	// MarkConversationRead flips is_read for the viewer's unread messages in
	// the conversation and returns how many it flipped. Flipping nothing is
	// not an error. Messages the viewer sent are never touched.
	MarkConversationRead(ctx context.Context, conversationID domainchat.ConversationID, viewerID string, now time.Time) (int64, error)
	// UnreadCountFor is the total of unread messages addressed to the user.
	UnreadCountFor(ctx context.Context, userID string) (int64, error)
	// UnreadByConversation groups the same rows per conversation for badges.
	UnreadByConversation(ctx context.Context, userID string) (map[domainchat.ConversationID]int64, error)
}

// IdempotencyStore deduplicates message sends on a client-supplied key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*domainchat.Message, bool, error)
	Save(ctx context.Context, key string, msg *domainchat.Message) error
}
