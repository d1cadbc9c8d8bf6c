package chat

import "time"

type ConversationCreated struct {
	ConversationID ConversationID
	PropertyID     string
	Participants   []string
	At             time.Time
}

func (e ConversationCreated) EventName() string     { return "chat.conversation_created" }
func (e ConversationCreated) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationCreated) OccurredAt() time.Time { return e.At }

type MessageSent struct {
	MessageID      MessageID
	ConversationID ConversationID
	PropertyID     string
	SenderID       string
	ReceiverID     string
	At             time.Time
}

func (e MessageSent) EventName() string     { return "chat.message_sent" }
func (e MessageSent) AggregateID() string   { return string(e.ConversationID) }
func (e MessageSent) OccurredAt() time.Time { return e.At }

type ConversationRead struct {
	ConversationID ConversationID
	ReaderID       string
	MessagesRead   int64
	At             time.Time
}

func (e ConversationRead) EventName() string     { return "chat.conversation_read" }
func (e ConversationRead) AggregateID() string   { return string(e.ConversationID) }
func (e ConversationRead) OccurredAt() time.Time { return e.At }
