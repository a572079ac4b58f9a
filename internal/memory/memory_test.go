package memory

import (
	"strings"
	"testing"
	"time"
)

func TestStore_RecordAndHistory(t *testing.T) {
	s := NewStore(4, time.Hour)

	s.RecordTurn("s1", "who was the appellant?", "The State of Kerala.")
	s.RecordTurn("s1", "what was the outcome?", "The appeal was dismissed.")
	s.RecordTurn("s1", "which court?", "The Supreme Court.")

	history := s.History("s1")
	if len(history) != 4 {
		t.Fatalf("expected history trimmed to 4 messages, got %d", len(history))
	}
	if history[0].Content != "what was the outcome?" || history[0].Role != RoleUser {
		t.Errorf("expected the oldest turn dropped, got %+v", history[0])
	}

	history[0].Content = "changed"
	if s.History("s1")[0].Content == "changed" {
		t.Error("History() returned an aliased slice")
	}

	if s.History("unknown") != nil {
		t.Error("expected nil history for unknown session")
	}
}

func TestStore_EmptySessionIgnored(t *testing.T) {
	s := NewStore(0, 0)
	s.RecordTurn("", "q", "a")
	if s.Len() != 0 {
		t.Errorf("expected no sessions, got %d", s.Len())
	}
}

func TestStore_Contextualize(t *testing.T) {
	s := NewStore(10, time.Hour)

	if got := s.Contextualize("s1", "first question"); got != "first question" {
		t.Errorf("expected unchanged question without history, got %q", got)
	}

	s.RecordTurn("s1", "first question", "first answer")
	got := s.Contextualize("s1", "follow up")

	want := "Previous conversation:\nUser: first question\nAssistant: first answer\n\nCurrent question: follow up"
	if got != want {
		t.Errorf("Contextualize() =\n%q\nwant\n%q", got, want)
	}
}

func TestStore_Cleanup(t *testing.T) {
	s := NewStore(10, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.RecordTurn("old", "q", "a")
	now = now.Add(30 * time.Second)
	s.RecordTurn("new", "q", "a")
	now = now.Add(45 * time.Second)

	if s.History("old") != nil {
		t.Error("expired session should not return history")
	}
	if removed := s.Cleanup(); removed != 1 {
		t.Errorf("expected 1 session removed, got %d", removed)
	}
	if s.Len() != 1 || s.History("new") == nil {
		t.Error("expected the recent session to survive")
	}
}

func TestFormatHistory(t *testing.T) {
	got := FormatHistory([]Message{
		{Role: RoleUser, Content: "q"},
		{Role: "system", Content: "ignored"},
		{Role: RoleAssistant, Content: "a"},
	})
	if got != "User: q\nAssistant: a\n" {
		t.Errorf("FormatHistory() = %q", got)
	}
	if strings.TrimSpace(FormatHistory(nil)) != "" {
		t.Error("expected empty output for no messages")
	}
}
