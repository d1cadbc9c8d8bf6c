package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "renthub/internal/app/outbox"
)

// Outbox queues event records in memory so the outbox worker can drain them
// when the service runs without Mongo.
type Outbox struct {
	mu      sync.Mutex
	pending []appoutbox.EventRecord
	claimed map[string]appoutbox.EventRecord
}

func NewOutbox() *Outbox {
	return &Outbox{claimed: make(map[string]appoutbox.EventRecord)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := ctxStatus(ctx); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

// Claim hands out the oldest pending record, or nil when the queue is empty.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.EventRecord, error) {
	if err := ctxStatus(ctx); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.pending) == 0 {
		return nil, nil
	}
	record := o.pending[0]
	o.pending = o.pending[1:]
	o.claimed[record.ID] = record
	copied := record
	return &copied, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.claimed, id)
	return nil
}

// MarkFailed requeues a claimed record for a later attempt.
func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	record, ok := o.claimed[id]
	if !ok {
		return nil
	}
	delete(o.claimed, id)
	record.Attempts++
	o.pending = append(o.pending, record)
	return nil
}

var _ appoutbox.Outbox = (*Outbox)(nil)
