package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renthub/internal/app/dto"
	chatservice "renthub/internal/app/services/chat"
	domainchat "renthub/internal/domain/chat"
)

// ChatHTTP exposes messaging endpoints.
type ChatHTTP interface {
	SendMessage(c *gin.Context)
	ListConversations(c *gin.Context)
	ViewConversation(c *gin.Context)
	MarkRead(c *gin.Context)
	UnreadCount(c *gin.Context)
}

// ChatHandler bridges HTTP with the messaging service.
type ChatHandler struct {
	Service *chatservice.Service
	Logger  *slog.Logger
}

type sendMessageRequest struct {
	// ConversationID is advisory only; the service re-derives the thread
	// from (property, sender, receiver) so the uniqueness invariant stays
	// authoritative.
	ConversationID string `json:"conversation_id"`
	ReceiverID     string `json:"receiver_id"`
	PropertyID     string `json:"property_id"`
	Content        string `json:"content"`
	IdempotencyKey string `json:"idempotency_key"`
}

// SendMessage posts a message, creating the conversation when needed.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}
	message, err := h.Service.SendMessage(c.Request.Context(), chatservice.SendMessageParams{
		SenderID:       p.ID,
		SenderRole:     p.Role,
		RecipientID:    req.ReceiverID,
		PropertyID:     req.PropertyID,
		Content:        req.Content,
		IdempotencyKey: key,
	})
	if err != nil {
		h.respondError(c, err, "send message", "user_id", p.ID, "property_id", req.PropertyID)
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(*message))
}

// ListConversations returns the caller's threads, newest activity first.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	entries, err := h.Service.ListConversations(c.Request.Context(), p.ID)
	if err != nil {
		h.respondError(c, err, "list conversations", "user_id", p.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(entries))}
	for _, entry := range entries {
		collection.Items = append(collection.Items, toConversationDTO(entry.Conversation, entry.OtherUserID, entry.UnreadCount))
	}
	c.JSON(http.StatusOK, collection)
}

// ViewConversation returns the ordered thread and marks the caller's unread
// messages read as a side effect.
func (h ChatHandler) ViewConversation(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	view, err := h.Service.ViewConversation(c.Request.Context(), domainchat.ConversationID(conversationID), p.ID)
	if err != nil {
		h.respondError(c, err, "view conversation", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	response := dto.ConversationView{
		Conversation: toConversationDTO(*view.Conversation, view.OtherUserID, 0),
		Messages:     make([]dto.ChatMessage, 0, len(view.Messages)),
		OtherUser:    dto.UserSummary{ID: view.OtherUserID},
	}
	for _, message := range view.Messages {
		response.Messages = append(response.Messages, toMessageDTO(message))
	}
	if view.Property != nil {
		response.Property = &dto.PropertySummary{
			ID:      view.Property.ID,
			OwnerID: view.Property.OwnerID,
			Title:   view.Property.Title,
			Status:  string(view.Property.Status),
		}
	}
	c.JSON(http.StatusOK, response)
}

// MarkRead flips the caller's unread messages in a conversation.
func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	flipped, err := h.Service.MarkRead(c.Request.Context(), domainchat.ConversationID(conversationID), p.ID)
	if err != nil {
		h.respondError(c, err, "mark read", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages_read": flipped})
}

// UnreadCount returns the caller's total unread badge.
func (h ChatHandler) UnreadCount(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	count, err := h.Service.UnreadSummary(c.Request.Context(), p.ID)
	if err != nil {
		h.respondError(c, err, "unread count", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadSummary{UnreadCount: count})
}

func (h ChatHandler) respondError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument:
			c.JSON(http.StatusBadRequest, gin.H{"error": st.Message()})
			return
		case codes.PermissionDenied:
			c.JSON(http.StatusForbidden, gin.H{"error": st.Message()})
			return
		case codes.FailedPrecondition:
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": st.Message()})
			return
		case codes.NotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": st.Message()})
			return
		case codes.Unavailable, codes.DeadlineExceeded:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging unavailable, try again"})
			return
		}
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "messaging unavailable"})
}

func toMessageDTO(message domainchat.Message) dto.ChatMessage {
	return dto.ChatMessage{
		ID:             string(message.ID),
		ConversationID: string(message.ConversationID),
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
		IsRead:         message.IsRead,
	}
}

func toConversationDTO(conversation domainchat.Conversation, otherUser string, unread int64) dto.Conversation {
	return dto.Conversation{
		ID:              string(conversation.ID),
		PropertyID:      conversation.PropertyID,
		Participants:    []string{conversation.ParticipantA, conversation.ParticipantB},
		OtherUser:       dto.UserSummary{ID: otherUser},
		CreatedAt:       conversation.CreatedAt,
		LastMessageAt:   conversation.LastActivity(),
		LastMessageText: conversation.LastMessageText,
		LastSenderID:    conversation.LastSenderID,
		UnreadCount:     unread,
	}
}

var _ ChatHTTP = (*ChatHandler)(nil)
