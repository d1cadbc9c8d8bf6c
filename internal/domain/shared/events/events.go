package events

import "time"

// DomainEvent is implemented by every event the outbox can publish.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}
