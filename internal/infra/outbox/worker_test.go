package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "renthub/internal/app/outbox"
	"renthub/internal/infra/storage/memory"
)

type captureProducer struct {
	topics   []string
	keys     []string
	payloads [][]byte
	fail     error
}

func (p *captureProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return nil
}

func queueRecord(t *testing.T, box *memory.Outbox, name, aggregate string) {
	t.Helper()
	err := box.Add(context.Background(), appoutbox.EventRecord{
		ID:         name + "|" + aggregate,
		Name:       name,
		Payload:    []byte(`{"conversation_id":"` + aggregate + `"}`),
		OccurredAt: time.Now().UTC(),
		Aggregate:  aggregate,
	})
	if err != nil {
		t.Fatalf("queue record: %v", err)
	}
}

func TestProcessOncePublishesEnvelope(t *testing.T) {
	box := memory.NewOutbox()
	queueRecord(t, box, "chat.message_sent", "conv-1")

	producer := &captureProducer{}
	worker := &Worker{Source: box, Producer: producer, ID: "w1"}

	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(producer.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(producer.topics))
	}
	if producer.topics[0] != "chat.events.v1" {
		t.Errorf("topic = %q, want chat.events.v1", producer.topics[0])
	}
	if producer.keys[0] != "conv-1" {
		t.Errorf("key = %q, want aggregate id", producer.keys[0])
	}

	var envelope struct {
		ID          string         `json:"id"`
		Type        string         `json:"type"`
		AggregateID string         `json:"aggregate_id"`
		Data        map[string]any `json:"data"`
	}
	if err := json.Unmarshal(producer.payloads[0], &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Type != "chat.message_sent" || envelope.AggregateID != "conv-1" {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Data["conversation_id"] != "conv-1" {
		t.Errorf("data = %v, want original payload", envelope.Data)
	}

	// Queue drained.
	rec, err := box.Claim(context.Background(), "w1")
	if err != nil || rec != nil {
		t.Errorf("claim after drain = %v, %v; want empty", rec, err)
	}
}

func TestProcessOnceEmptyQueue(t *testing.T) {
	worker := &Worker{Source: memory.NewOutbox(), Producer: &captureProducer{}, ID: "w1"}
	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process on empty queue: %v", err)
	}
}

func TestProcessOnceRetriesFailedPublish(t *testing.T) {
	box := memory.NewOutbox()
	queueRecord(t, box, "chat.conversation_created", "conv-2")

	producer := &captureProducer{fail: errors.New("broker down")}
	worker := &Worker{Source: box, Producer: producer, ID: "w1", Backoff: []time.Duration{time.Millisecond}}

	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process with failing producer: %v", err)
	}

	// The record is requeued, a healthy producer picks it up.
	producer.fail = nil
	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(producer.topics) != 1 {
		t.Fatalf("published %d messages after retry, want 1", len(producer.topics))
	}
}

func TestTopicPrefix(t *testing.T) {
	worker := &Worker{TopicPrefix: "staging."}
	if got := worker.topicFor("chat.message_sent"); got != "staging.chat.events.v1" {
		t.Errorf("topic = %q, want staging.chat.events.v1", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	box := memory.NewOutbox()
	worker := &Worker{Source: box, Producer: &captureProducer{}, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	worker := &Worker{}
	if err := worker.Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Errorf("err = %v, want ErrWorkerNotConfigured", err)
	}
}
