package dto

import "time"

// ChatMessage is the wire form of a single message.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
}

// PropertySummary is the directory slice echoed back to chat clients.
type PropertySummary struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title,omitempty"`
	Status  string `json:"status"`
}

// UserSummary identifies the other conversation participant.
type UserSummary struct {
	ID string `json:"id"`
}

// Conversation describes one thread in a conversation list.
type Conversation struct {
	ID              string      `json:"id"`
	PropertyID      string      `json:"property_id"`
	Participants    []string    `json:"participants"`
	OtherUser       UserSummary `json:"other_user"`
	CreatedAt       time.Time   `json:"created_at"`
	LastMessageAt   time.Time   `json:"last_message_at"`
	LastMessageText string      `json:"last_message_text,omitempty"`
	LastSenderID    string      `json:"last_message_sender_id,omitempty"`
	UnreadCount     int64       `json:"unread_count"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ConversationView is the response for opening a single thread.
type ConversationView struct {
	Conversation Conversation     `json:"conversation"`
	Messages     []ChatMessage    `json:"messages"`
	Property     *PropertySummary `json:"property,omitempty"`
	OtherUser    UserSummary      `json:"other_user"`
}

type UnreadSummary struct {
	UnreadCount int64 `json:"unread_count"`
}
