package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appoutbox "renthub/internal/app/outbox"
	"renthub/internal/app/policies"
	domainchat "renthub/internal/domain/chat"
	"renthub/internal/domain/shared/events"
	domainuser "renthub/internal/domain/user"
)

// Service is the single entry point for the messaging core. It composes the
// conversation store, message log and read-state tracker and enforces the
// business rules that sit above them.
type Service struct {
	Conversations ConversationStore
	Messages      MessageLog
	ReadState     ReadStateTracker
	Directory     policies.PropertyDirectory
	Idempotency   IdempotencyStore
	Outbox        appoutbox.Outbox
	Encoder       appoutbox.EventEncoder
	Logger        *slog.Logger
	Now           func() time.Time
}

type SendMessageParams struct {
	SenderID       string
	SenderRole     string
	RecipientID    string
	PropertyID     string
	Content        string
	IdempotencyKey string
}

// ConversationView bundles everything a client needs when opening a thread.
type ConversationView struct {
	Conversation *domainchat.Conversation
	Messages     []domainchat.Message
	Property     *policies.Property
	OtherUserID  string
}

// ConversationEntry is one row of a user's conversation list.
type ConversationEntry struct {
	Conversation domainchat.Conversation
	OtherUserID  string
	UnreadCount  int64
}

// SendMessage validates the request, resolves or creates the conversation and
// appends the message. The rented-property and initiator-role gates apply only
// when no conversation exists yet: replies in an open thread are never
// re-gated.
func (s *Service) SendMessage(ctx context.Context, params SendMessageParams) (*domainchat.Message, error) {
	if err := s.ensureStores(); err != nil {
		return nil, err
	}
	content, err := domainchat.ValidateContent(params.Content)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, _, err := domainchat.CanonicalPair(params.SenderID, params.RecipientID); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	propertyID := strings.TrimSpace(params.PropertyID)
	if propertyID == "" {
		return nil, status.Error(codes.InvalidArgument, domainchat.ErrPropertyRequired.Error())
	}

	now := s.now()
	conversation, err := s.Conversations.FindByTriple(ctx, propertyID, params.SenderID, params.RecipientID)
	switch {
	case err == nil:
		// Ongoing exchange, no gates.
	case status.Code(err) == codes.NotFound:
		conversation, err = s.openConversation(ctx, propertyID, params, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	var idempotencyKey string
	if key := strings.TrimSpace(params.IdempotencyKey); key != "" && s.Idempotency != nil {
		idempotencyKey = string(conversation.ID) + "|" + key
		if prior, found, err := s.Idempotency.Get(ctx, idempotencyKey); err != nil {
			return nil, err
		} else if found {
			return prior, nil
		}
	}

	message, err := s.Messages.Append(ctx, conversation.ID, params.SenderID, content, now)
	if err != nil {
		return nil, err
	}
	if idempotencyKey != "" {
		if err := s.Idempotency.Save(ctx, idempotencyKey, message); err != nil {
			s.warn("idempotency record failed", "error", err, "conversation_id", conversation.ID)
		}
	}
	s.record(ctx, domainchat.MessageSent{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		PropertyID:     conversation.PropertyID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		At:             message.CreatedAt,
	})
	return message, nil
}

// openConversation applies the initiation gates and creates the thread.
func (s *Service) openConversation(ctx context.Context, propertyID string, params SendMessageParams, now time.Time) (*domainchat.Conversation, error) {
	if s.Directory == nil {
		return nil, status.Error(codes.Unavailable, "property directory not configured")
	}
	property, err := s.Directory.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, policies.ErrPropertyNotFound) {
			return nil, status.Error(codes.NotFound, "property not found")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, "property directory timed out")
		}
		return nil, status.Error(codes.Unavailable, "property directory unavailable")
	}
	if property.Status == policies.PropertyRented {
		return nil, status.Error(codes.FailedPrecondition, "property is rented; messaging disabled")
	}
	role, _ := domainuser.ParseRole(params.SenderRole)
	if !domainuser.CanInitiateContact(role) {
		return nil, status.Error(codes.PermissionDenied, "only tenants and admins may initiate contact")
	}

	conversation, created, err := s.Conversations.FindOrCreate(ctx, propertyID, params.SenderID, params.RecipientID, now)
	if err != nil {
		return nil, err
	}
	if created {
		s.record(ctx, domainchat.ConversationCreated{
			ConversationID: conversation.ID,
			PropertyID:     conversation.PropertyID,
			Participants:   []string{conversation.ParticipantA, conversation.ParticipantB},
			At:             conversation.CreatedAt,
		})
	}
	return conversation, nil
}

// ViewConversation returns the ordered messages plus property and peer
// summaries, and marks the viewer's unread messages read before returning.
func (s *Service) ViewConversation(ctx context.Context, conversationID domainchat.ConversationID, viewerID string) (*ConversationView, error) {
	if err := s.ensureStores(); err != nil {
		return nil, err
	}
	conversation, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	otherUser, err := conversation.OtherParticipant(viewerID)
	if err != nil {
		return nil, status.Error(codes.PermissionDenied, "not a conversation participant")
	}

	messages, err := s.Messages.ListOrdered(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	flipped, err := s.ReadState.MarkConversationRead(ctx, conversationID, viewerID, s.now())
	if err != nil {
		return nil, err
	}
	if flipped > 0 {
		s.record(ctx, domainchat.ConversationRead{
			ConversationID: conversationID,
			ReaderID:       viewerID,
			MessagesRead:   flipped,
			At:             s.now(),
		})
		// The caller sees its own fetch post-flip.
		for i := range messages {
			if messages[i].ReceiverID == viewerID {
				messages[i].IsRead = true
			}
		}
	}

	view := &ConversationView{
		Conversation: conversation,
		Messages:     messages,
		OtherUserID:  otherUser,
	}
	if s.Directory != nil {
		if property, err := s.Directory.GetProperty(ctx, conversation.PropertyID); err == nil {
			view.Property = &property
		} else if !errors.Is(err, policies.ErrPropertyNotFound) {
			s.warn("property summary lookup failed", "error", err, "property_id", conversation.PropertyID)
		}
	}
	return view, nil
}

// MarkRead flips the viewer's unread messages without fetching the thread.
func (s *Service) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, viewerID string) (int64, error) {
	if err := s.ensureStores(); err != nil {
		return 0, err
	}
	conversation, err := s.Conversations.ByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conversation.HasParticipant(viewerID) {
		return 0, status.Error(codes.PermissionDenied, "not a conversation participant")
	}
	flipped, err := s.ReadState.MarkConversationRead(ctx, conversationID, viewerID, s.now())
	if err != nil {
		return 0, err
	}
	if flipped > 0 {
		s.record(ctx, domainchat.ConversationRead{
			ConversationID: conversationID,
			ReaderID:       viewerID,
			MessagesRead:   flipped,
			At:             s.now(),
		})
	}
	return flipped, nil
}

// ListConversations returns the user's threads newest-activity first, each
// with its own unread count for list badges.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]ConversationEntry, error) {
	if err := s.ensureStores(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}
	conversations, err := s.Conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.ReadState.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]ConversationEntry, 0, len(conversations))
	for _, conversation := range conversations {
		other, err := conversation.OtherParticipant(userID)
		if err != nil {
			continue
		}
		entries = append(entries, ConversationEntry{
			Conversation: conversation,
			OtherUserID:  other,
			UnreadCount:  unread[conversation.ID],
		})
	}
	return entries, nil
}

// UnreadSummary is the user's total unread badge.
func (s *Service) UnreadSummary(ctx context.Context, userID string) (int64, error) {
	if err := s.ensureStores(); err != nil {
		return 0, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, status.Error(codes.InvalidArgument, "user id is required")
	}
	return s.ReadState.UnreadCountFor(ctx, userID)
}

func (s *Service) ensureStores() error {
	if s.Conversations == nil || s.Messages == nil || s.ReadState == nil {
		return status.Error(codes.Unavailable, "chat store not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// record queues domain events for the outbox. Event delivery is best-effort
// observability plumbing; a failure never fails the user operation.
func (s *Service) record(ctx context.Context, evs ...events.DomainEvent) {
	if s.Outbox == nil {
		return
	}
	if err := appoutbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, evs...); err != nil {
		s.warn("outbox record failed", "error", err)
	}
}

func (s *Service) warn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
