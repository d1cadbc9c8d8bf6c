package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "renthub/internal/domain/chat"
)

// ChatStore is an in-process implementation of the conversation store,
// message log and read-state tracker. It backs tests and single-node dev
// runs; everything lives behind one mutex so the uniqueness and atomic
// append guarantees hold trivially.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]*domainchat.Conversation
	byPairKey     map[string]domainchat.ConversationID
	messages      map[domainchat.ConversationID][]domainchat.Message
	seq           int64
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation),
		byPairKey:     make(map[string]domainchat.ConversationID),
		messages:      make(map[domainchat.ConversationID][]domainchat.Message),
	}
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[id]
	if !ok {
		return nil, status.Error(codes.NotFound, "conversation not found")
	}
	copied := *conversation
	return &copied, nil
}

func (s *ChatStore) FindByTriple(ctx context.Context, propertyID, userA, userB string) (*domainchat.Conversation, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPairKey[key]
	if !ok {
		return nil, status.Error(codes.NotFound, "conversation not found")
	}
	copied := *s.conversations[id]
	return &copied, nil
}

func (s *ChatStore) FindOrCreate(ctx context.Context, propertyID, userA, userB string, now time.Time) (*domainchat.Conversation, bool, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, false, err
	}
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPairKey[key]; ok {
		copied := *s.conversations[id]
		return &copied, false, nil
	}
	conversation, err := domainchat.NewConversation(domainchat.CreateConversationParams{
		ID:         domainchat.ConversationID(uuid.NewString()),
		PropertyID: propertyID,
		UserA:      userA,
		UserB:      userB,
		Now:        now,
	})
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}
	s.conversations[conversation.ID] = conversation
	s.byPairKey[key] = conversation.ID
	copied := *conversation
	return &copied, true, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domainchat.Conversation, 0)
	for _, conversation := range s.conversations {
		if conversation.HasParticipant(userID) {
			result = append(result, *conversation)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity().After(result[j].LastActivity())
	})
	return result, nil
}

func (s *ChatStore) Append(ctx context.Context, conversationID domainchat.ConversationID, senderID, content string, now time.Time) (*domainchat.Message, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return nil, status.Error(codes.NotFound, "conversation not found")
	}
	receiverID, err := conversation.OtherParticipant(senderID)
	if err != nil {
		return nil, status.Error(codes.PermissionDenied, "sender is not a conversation participant")
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	s.seq++
	message := domainchat.Message{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conversationID,
		Seq:            s.seq,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)
	conversation.LastMessageAt = now
	conversation.LastSenderID = senderID
	conversation.LastMessageText = domainchat.Preview(content)
	copied := message
	return &copied, nil
}

func (s *ChatStore) ListOrdered(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, status.Error(codes.NotFound, "conversation not found")
	}
	stored := s.messages[conversationID]
	result := make([]domainchat.Message, len(stored))
	copy(result, stored)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Seq < result[j].Seq
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *ChatStore) MarkConversationRead(ctx context.Context, conversationID domainchat.ConversationID, viewerID string, now time.Time) (int64, error) {
	if err := ctxStatus(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return 0, status.Error(codes.NotFound, "conversation not found")
	}
	stored := s.messages[conversationID]
	var flipped int64
	for i := range stored {
		if stored[i].ReceiverID == viewerID && !stored[i].IsRead {
			stored[i].IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *ChatStore) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	if err := ctxStatus(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, stored := range s.messages {
		for i := range stored {
			if stored[i].ReceiverID == userID && !stored[i].IsRead {
				total++
			}
		}
	}
	return total, nil
}

func (s *ChatStore) UnreadByConversation(ctx context.Context, userID string) (map[domainchat.ConversationID]int64, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[domainchat.ConversationID]int64)
	for conversationID, stored := range s.messages {
		for i := range stored {
			if stored[i].ReceiverID == userID && !stored[i].IsRead {
				result[conversationID]++
			}
		}
	}
	return result, nil
}

// ctxStatus surfaces an expired or cancelled context as the matching gRPC
// status before touching store state.
func ctxStatus(ctx context.Context) error {
	if ctx == nil || ctx.Err() == nil {
		return nil
	}
	return status.FromContextError(ctx.Err()).Err()
}
