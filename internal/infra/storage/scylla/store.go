package scylla

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "renthub/internal/domain/chat"
)

// ChatStore keeps chat state in Scylla. The (property, pair) uniqueness
// invariant is enforced through a lightweight transaction on the
// conversations_by_pair table, and message ordering comes from timeuuid
// clustering within the conversation partition.
type ChatStore struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewChatStore(session *gocql.Session, logger *slog.Logger) *ChatStore {
	return &ChatStore{session: session, logger: logger}
}

const conversationColumns = `id, pair_key, property_id, participants, created_at, last_message_at, last_sender_id, last_message_text`

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	var (
		row          rowConversation
		participants []string
	)
	err := s.session.
		Query(`SELECT `+conversationColumns+` FROM conversations WHERE id = ? LIMIT 1`, string(id)).
		WithContext(ctx).
		Scan(&row.ID, &row.PairKey, &row.PropertyID, &participants, &row.CreatedAt, &row.LastMessageAt, &row.LastSenderID, &row.LastMessageText)
	if err != nil {
		return nil, scyllaStatus(err, "conversation not found")
	}
	return row.toDomain(participants), nil
}

func (s *ChatStore) FindByTriple(ctx context.Context, propertyID, userA, userB string) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var conversationID string
	err = s.session.
		Query(`SELECT conversation_id FROM conversations_by_pair WHERE pair_key = ?`, key).
		WithContext(ctx).
		Scan(&conversationID)
	if err != nil {
		return nil, scyllaStatus(err, "conversation not found")
	}
	return s.ByID(ctx, domainchat.ConversationID(conversationID))
}

func (s *ChatStore) FindOrCreate(ctx context.Context, propertyID, userA, userB string, now time.Time) (*domainchat.Conversation, bool, error) {
	if s.session == nil {
		return nil, false, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	candidate, err := domainchat.NewConversation(domainchat.CreateConversationParams{
		ID:         domainchat.ConversationID(uuid.NewString()),
		PropertyID: propertyID,
		UserA:      userA,
		UserB:      userB,
		Now:        now,
	})
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}

	// LWT claim: exactly one writer wins the pair key. A losing insert gets
	// the whole existing row back, so the previous values arrive as a map.
	prev := make(map[string]interface{})
	applied, err := s.session.
		Query(`INSERT INTO conversations_by_pair (pair_key, conversation_id) VALUES (?, ?) IF NOT EXISTS`,
			key, string(candidate.ID)).
		WithContext(ctx).
		MapScanCAS(prev)
	if err != nil {
		return nil, false, scyllaStatus(err, "")
	}
	if !applied {
		existingID, ok := previousConversationID(prev)
		if !ok {
			conversation, err := s.FindByTriple(ctx, propertyID, userA, userB)
			if err != nil {
				return nil, false, err
			}
			return conversation, false, nil
		}
		conversation, err := s.ByID(ctx, domainchat.ConversationID(existingID))
		if err != nil {
			return nil, false, err
		}
		return conversation, false, nil
	}

	err = s.session.
		Query(`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(candidate.ID), key, candidate.PropertyID,
			[]string{candidate.ParticipantA, candidate.ParticipantB},
			candidate.CreatedAt, candidate.LastMessageAt, "", "").
		WithContext(ctx).
		Exec()
	if err != nil {
		return nil, false, scyllaStatus(err, "")
	}
	return candidate, true, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	if s.session == nil {
		return nil, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT `+conversationColumns+` FROM conversations WHERE participants CONTAINS ? ALLOW FILTERING`, userID).
		WithContext(ctx).
		Iter()

	result := make([]domainchat.Conversation, 0)
	var (
		row          rowConversation
		participants []string
	)
	for iter.Scan(&row.ID, &row.PairKey, &row.PropertyID, &participants, &row.CreatedAt, &row.LastMessageAt, &row.LastSenderID, &row.LastMessageText) {
		result = append(result, *row.toDomain(participants))
		participants = nil
	}
	if err := iter.Close(); err != nil {
		return nil, scyllaStatus(err, "")
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity().After(result[j].LastActivity())
	})
	return result, nil
}

func (s *ChatStore) Append(ctx context.Context, conversationID domainchat.ConversationID, senderID, content string, now time.Time) (*domainchat.Message, error) {
	conversation, err := s.ByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	receiverID, err := conversation.OtherParticipant(senderID)
	if err != nil {
		return nil, status.Error(codes.PermissionDenied, "sender is not a conversation participant")
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	messageID := gocql.TimeUUID()
	err = s.session.
		Query(`INSERT INTO messages (conversation_id, message_id, sender_id, receiver_id, content, created_at, is_read) VALUES (?, ?, ?, ?, ?, ?, false)`,
			string(conversationID), messageID, senderID, receiverID, content, now).
		WithContext(ctx).
		Exec()
	if err != nil {
		return nil, scyllaStatus(err, "")
	}
	// Preview update is best effort; the message row is the source of truth.
	err = s.session.
		Query(`UPDATE conversations SET last_message_at = ?, last_sender_id = ?, last_message_text = ? WHERE id = ?`,
			now, senderID, domainchat.Preview(content), string(conversationID)).
		WithContext(ctx).
		Exec()
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to update conversation preview", "error", err, "conversation_id", conversationID)
	}
	return &domainchat.Message{
		ID:             domainchat.MessageID(messageID.String()),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

func (s *ChatStore) ListOrdered(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if _, err := s.ByID(ctx, conversationID); err != nil {
		return nil, err
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, receiver_id, content, created_at, is_read FROM messages WHERE conversation_id = ?`,
			string(conversationID)).
		WithContext(ctx).
		Iter()

	result := make([]domainchat.Message, 0)
	var (
		messageID gocql.UUID
		sender    string
		receiver  string
		content   string
		createdAt time.Time
		isRead    bool
	)
	var seq int64
	for iter.Scan(&messageID, &sender, &receiver, &content, &createdAt, &isRead) {
		seq++
		result = append(result, domainchat.Message{
			ID:             domainchat.MessageID(messageID.String()),
			ConversationID: conversationID,
			Seq:            seq,
			SenderID:       sender,
			ReceiverID:     receiver,
			Content:        content,
			CreatedAt:      createdAt.UTC(),
			IsRead:         isRead,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, scyllaStatus(err, "")
	}
	return result, nil
}

func (s *ChatStore) MarkConversationRead(ctx context.Context, conversationID domainchat.ConversationID, viewerID string, now time.Time) (int64, error) {
	if s.session == nil {
		return 0, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT message_id, receiver_id, is_read FROM messages WHERE conversation_id = ?`, string(conversationID)).
		WithContext(ctx).
		Iter()
	var (
		messageID gocql.UUID
		receiver  string
		isRead    bool
		unread    []gocql.UUID
	)
	for iter.Scan(&messageID, &receiver, &isRead) {
		if receiver == viewerID && !isRead {
			unread = append(unread, messageID)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, scyllaStatus(err, "")
	}
	var flipped int64
	for _, id := range unread {
		err := s.session.
			Query(`UPDATE messages SET is_read = true WHERE conversation_id = ? AND message_id = ?`,
				string(conversationID), id).
			WithContext(ctx).
			Exec()
		if err != nil {
			return flipped, scyllaStatus(err, "")
		}
		flipped++
	}
	return flipped, nil
}

func (s *ChatStore) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	if s.session == nil {
		return 0, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	var count int64
	err := s.session.
		Query(`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = false ALLOW FILTERING`, userID).
		WithContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, scyllaStatus(err, "")
	}
	return count, nil
}

func (s *ChatStore) UnreadByConversation(ctx context.Context, userID string) (map[domainchat.ConversationID]int64, error) {
	if s.session == nil {
		return nil, status.Error(codes.Unavailable, "scylla session not initialized")
	}
	iter := s.session.
		Query(`SELECT conversation_id FROM messages WHERE receiver_id = ? AND is_read = false ALLOW FILTERING`, userID).
		WithContext(ctx).
		Iter()
	result := make(map[domainchat.ConversationID]int64)
	var conversationID string
	for iter.Scan(&conversationID) {
		result[domainchat.ConversationID(conversationID)]++
	}
	if err := iter.Close(); err != nil {
		return nil, scyllaStatus(err, "")
	}
	return result, nil
}

type rowConversation struct {
	ID              string
	PairKey         string
	PropertyID      string
	CreatedAt       time.Time
	LastMessageAt   time.Time
	LastSenderID    string
	LastMessageText string
}

func (r rowConversation) toDomain(participants []string) *domainchat.Conversation {
	sort.Strings(participants)
	conversation := &domainchat.Conversation{
		ID:              domainchat.ConversationID(r.ID),
		PropertyID:      r.PropertyID,
		CreatedAt:       r.CreatedAt.UTC(),
		LastMessageAt:   r.LastMessageAt.UTC(),
		LastSenderID:    r.LastSenderID,
		LastMessageText: r.LastMessageText,
	}
	if len(participants) == 2 {
		conversation.ParticipantA = participants[0]
		conversation.ParticipantB = participants[1]
	}
	return conversation
}

// previousConversationID extracts conversation_id from the previous-values
// row a failed CAS insert returns.
func previousConversationID(prev map[string]interface{}) (string, bool) {
	id, ok := prev["conversation_id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func scyllaStatus(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gocql.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		return status.Error(codes.NotFound, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
