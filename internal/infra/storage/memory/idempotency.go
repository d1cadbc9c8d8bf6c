package memory

import (
	"context"
	"sync"

	domainchat "renthub/internal/domain/chat"
)

// IdempotencyStore remembers sent messages by client key.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]domainchat.Message
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]domainchat.Message)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domainchat.Message, bool, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	message, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	copied := message
	return &copied, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, msg *domainchat.Message) error {
	if err := ctxStatus(ctx); err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = *msg
	return nil
}
