package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCanonicalPairOrdersAndTrims(t *testing.T) {
	low, high, err := CanonicalPair("  zed  ", "anna")
	if err != nil {
		t.Fatalf("canonical pair: %v", err)
	}
	if low != "anna" || high != "zed" {
		t.Errorf("pair = (%q, %q), want (anna, zed)", low, high)
	}

	low2, high2, err := CanonicalPair("anna", "zed")
	if err != nil {
		t.Fatalf("canonical pair reversed: %v", err)
	}
	if low2 != low || high2 != high {
		t.Errorf("pair order depends on argument order: (%q, %q) vs (%q, %q)", low, high, low2, high2)
	}
}

func TestCanonicalPairRejectsBadInput(t *testing.T) {
	if _, _, err := CanonicalPair("", "bob"); !errors.Is(err, ErrParticipantRequired) {
		t.Errorf("empty participant: err = %v, want ErrParticipantRequired", err)
	}
	if _, _, err := CanonicalPair(" bob ", "bob"); !errors.Is(err, ErrSameParticipant) {
		t.Errorf("self pair: err = %v, want ErrSameParticipant", err)
	}
}

func TestPairKeyStableAcrossOrder(t *testing.T) {
	k1, err := PairKey("prop-1", "u2", "u1")
	if err != nil {
		t.Fatalf("pair key: %v", err)
	}
	k2, err := PairKey("prop-1", "u1", "u2")
	if err != nil {
		t.Fatalf("pair key reversed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("keys differ: %q vs %q", k1, k2)
	}
	if k1 != "prop-1|u1|u2" {
		t.Errorf("key = %q, want prop-1|u1|u2", k1)
	}

	if _, err := PairKey("  ", "u1", "u2"); !errors.Is(err, ErrPropertyRequired) {
		t.Errorf("blank property: err = %v, want ErrPropertyRequired", err)
	}
}

func TestNewConversationCanonicalizes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conv, err := NewConversation(CreateConversationParams{
		ID:         "c1",
		PropertyID: " prop-9 ",
		UserA:      "walter",
		UserB:      "ada",
		Now:        now,
	})
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if conv.ParticipantA != "ada" || conv.ParticipantB != "walter" {
		t.Errorf("participants = (%q, %q), want canonical order", conv.ParticipantA, conv.ParticipantB)
	}
	if conv.PropertyID != "prop-9" {
		t.Errorf("property = %q, want trimmed prop-9", conv.PropertyID)
	}
	if !conv.CreatedAt.Equal(now) || !conv.LastMessageAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", conv.CreatedAt, conv.LastMessageAt, now)
	}
}

func TestOtherParticipant(t *testing.T) {
	conv := Conversation{ParticipantA: "ada", ParticipantB: "walter"}

	other, err := conv.OtherParticipant("ada")
	if err != nil || other != "walter" {
		t.Errorf("other of ada = %q, %v; want walter", other, err)
	}
	other, err = conv.OtherParticipant("walter")
	if err != nil || other != "ada" {
		t.Errorf("other of walter = %q, %v; want ada", other, err)
	}
	if _, err := conv.OtherParticipant("mallory"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("stranger: err = %v, want ErrNotParticipant", err)
	}
	if conv.HasParticipant("mallory") {
		t.Error("HasParticipant accepted a stranger")
	}
}

func TestLastActivityFallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	conv := Conversation{CreatedAt: created}
	if got := conv.LastActivity(); !got.Equal(created) {
		t.Errorf("last activity = %v, want created_at %v", got, created)
	}
	sent := created.Add(time.Hour)
	conv.LastMessageAt = sent
	if got := conv.LastActivity(); !got.Equal(sent) {
		t.Errorf("last activity = %v, want last_message_at %v", got, sent)
	}
}

func TestValidateContent(t *testing.T) {
	got, err := ValidateContent("  hello there  ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != "hello there" {
		t.Errorf("content = %q, want trimmed", got)
	}

	if _, err := ValidateContent("   "); !errors.Is(err, ErrContentRequired) {
		t.Errorf("blank: err = %v, want ErrContentRequired", err)
	}

	exact := strings.Repeat("й", MaxContentRunes)
	if _, err := ValidateContent(exact); err != nil {
		t.Errorf("content at limit rejected: %v", err)
	}
	if _, err := ValidateContent(exact + "x"); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("over limit: err = %v, want ErrContentTooLong", err)
	}
}

func TestPreviewTruncatesByRunes(t *testing.T) {
	short := "see you at the viewing"
	if got := Preview(short); got != short {
		t.Errorf("short preview = %q, want unchanged", got)
	}
	long := strings.Repeat("ж", PreviewRunes+50)
	got := Preview(long)
	if len([]rune(got)) != PreviewRunes {
		t.Errorf("preview length = %d runes, want %d", len([]rune(got)), PreviewRunes)
	}
}
