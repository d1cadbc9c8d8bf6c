package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "renthub/internal/app/outbox"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Producer is the broker side of the worker; the Kafka adapter satisfies it.
type Producer interface {
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

// Source hands out claimed records; both the Mongo store and the in-memory
// outbox implement it.
type Source interface {
	Claim(ctx context.Context, workerID string) (*appoutbox.EventRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Worker drains the outbox into the broker on a poll interval.
type Worker struct {
	Source      Source
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// ProcessOnce claims and publishes at most one record. Publish failures are
// recorded for retry, never returned, so the loop keeps draining.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	record, err := w.Source.Claim(ctx, w.workerID())
	if err != nil || record == nil {
		return err
	}
	payload, err := w.envelope(record)
	if err != nil {
		_ = w.Source.MarkFailed(ctx, record.ID, w.nextRetry(record.Attempts), err.Error())
		return nil
	}
	topic := w.topicFor(record.Name)
	headers := map[string]string{"content-type": "application/json"}
	if err := w.Producer.Publish(ctx, topic, record.Aggregate, payload, headers); err != nil {
		if w.Logger != nil {
			w.Logger.Warn("event publish failed", "event", record.Name, "error", err)
		}
		_ = w.Source.MarkFailed(ctx, record.ID, w.nextRetry(record.Attempts), err.Error())
		return nil
	}
	return w.Source.MarkSent(ctx, record.ID)
}

func (w *Worker) envelope(record *appoutbox.EventRecord) ([]byte, error) {
	var data map[string]any
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"id":           record.ID,
		"type":         record.Name,
		"aggregate_id": record.Aggregate,
		"occurred_at":  record.OccurredAt,
		"data":         data,
	})
}

// topicFor maps "chat.message_sent" onto "chat.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}
