package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"renthub/internal/app/dto"
	appoutbox "renthub/internal/app/outbox"
	"renthub/internal/app/policies"
	chatservice "renthub/internal/app/services/chat"
	"renthub/internal/infra/obs"
	"renthub/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T) (http.Handler, *memory.PropertyDirectory) {
	t.Helper()
	store := memory.NewChatStore()
	dir := memory.NewPropertyDirectory()
	dir.Put(policies.Property{ID: "prop-1", OwnerID: "owner-1", Title: "Loft Downtown", Status: policies.PropertyAvailable})
	svc := &chatservice.Service{
		Conversations: store,
		Messages:      store,
		ReadState:     store,
		Directory:     dir,
		Idempotency:   memory.NewIdempotencyStore(),
		Outbox:        memory.NewOutbox(),
		Encoder:       appoutbox.JSONEventEncoder{},
	}
	router := NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Chat:               ChatHandler{Service: svc},
		IdentityMiddleware: IdentityMiddleware{}.Handle,
	})
	return router, dir
}

func doJSON(t *testing.T, router http.Handler, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sendBody(receiver, property, content string) map[string]string {
	return map[string]string{
		"receiver_id": receiver,
		"property_id": property,
		"content":     content,
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages", "tenant-1", "tenant",
		sendBody("owner-1", "prop-1", "Is it still available?"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var msg dto.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SenderID != "tenant-1" || msg.ReceiverID != "owner-1" {
		t.Errorf("message routing = %q -> %q", msg.SenderID, msg.ReceiverID)
	}
	if msg.ConversationID == "" || msg.ID == "" {
		t.Error("ids missing in response")
	}
}

func TestSendMessageRequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages", "", "",
		sendBody("owner-1", "prop-1", "hi"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSendMessageErrorMapping(t *testing.T) {
	router, dir := newTestRouter(t)
	dir.Put(policies.Property{ID: "prop-rented", OwnerID: "owner-1", Status: policies.PropertyRented})

	cases := []struct {
		name   string
		user   string
		role   string
		body   map[string]string
		status int
	}{
		{"blank content", "tenant-1", "tenant", sendBody("owner-1", "prop-1", "  "), http.StatusBadRequest},
		{"self message", "tenant-1", "tenant", sendBody("tenant-1", "prop-1", "hi"), http.StatusBadRequest},
		{"owner initiates", "owner-1", "owner", sendBody("tenant-1", "prop-1", "hi"), http.StatusForbidden},
		{"unknown property", "tenant-1", "tenant", sendBody("owner-1", "ghost", "hi"), http.StatusNotFound},
		{"rented property", "tenant-1", "tenant", sendBody("owner-1", "prop-rented", "hi"), http.StatusPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/messages", tc.user, tc.role, tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestIdempotencyKeyHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	send := func() dto.ChatMessage {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(sendBody("owner-1", "prop-1", "once")); err != nil {
			t.Fatalf("encode: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "tenant-1")
		req.Header.Set("X-User-Role", "tenant")
		req.Header.Set("Idempotency-Key", "req-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var msg dto.ChatMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}

	first := send()
	second := send()
	if second.ID != first.ID {
		t.Errorf("replay created message %s, want %s", second.ID, first.ID)
	}
}

func TestConversationFlowOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages", "tenant-1", "tenant",
		sendBody("owner-1", "prop-1", "hello"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: status = %d", rec.Code)
	}
	var msg dto.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode send: %v", err)
	}

	// The owner's list shows one unread thread.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages/conversations", "owner-1", "owner", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var list dto.ConversationList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].UnreadCount != 1 {
		t.Fatalf("list = %+v, want one thread with unread 1", list.Items)
	}
	if list.Items[0].OtherUser.ID != "tenant-1" {
		t.Errorf("other user = %q, want tenant-1", list.Items[0].OtherUser.ID)
	}

	// Opening the thread flips the unread flag.
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/messages/conversations/%s", msg.ConversationID), "owner-1", "owner", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("view: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var view dto.ConversationView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Messages) != 1 || !view.Messages[0].IsRead {
		t.Errorf("view messages = %+v, want one read message", view.Messages)
	}
	if view.Property == nil || view.Property.Title != "Loft Downtown" {
		t.Errorf("property summary = %+v", view.Property)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/messages/unread-count", "owner-1", "owner", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unread: status = %d", rec.Code)
	}
	var unread dto.UnreadSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &unread); err != nil {
		t.Fatalf("decode unread: %v", err)
	}
	if unread.UnreadCount != 0 {
		t.Errorf("unread after view = %d, want 0", unread.UnreadCount)
	}
}

func TestMarkReadEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/messages", "tenant-1", "tenant",
		sendBody("owner-1", "prop-1", "ping"))
	var msg dto.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/messages/conversations/%s/read", msg.ConversationID), "owner-1", "owner", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result struct {
		MessagesRead int64 `json:"messages_read"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.MessagesRead != 1 {
		t.Errorf("messages_read = %d, want 1", result.MessagesRead)
	}

	// A stranger is rejected.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/messages/conversations/%s/read", msg.ConversationID), "mallory", "tenant", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger mark read: status = %d, want 403", rec.Code)
	}

	// Unknown conversation maps to 404.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/messages/conversations/missing/read", "owner-1", "owner", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: status = %d, want 404", rec.Code)
	}
}

func TestPreflightAllowsIdentityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID, X-User-Role, Idempotency-Key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent && rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	allowed := rec.Header().Get("Access-Control-Allow-Headers")
	for _, header := range []string{"X-User-ID", "X-User-Role", "Idempotency-Key"} {
		if !strings.Contains(strings.ToLower(allowed), strings.ToLower(header)) {
			t.Errorf("allow-headers %q missing %s", allowed, header)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{"/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
