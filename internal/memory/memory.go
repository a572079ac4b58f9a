// Package memory keeps short per-session conversation histories so follow-up
// questions can be routed with the earlier turns attached.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn half.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

type session struct {
	messages  []Message
	updatedAt time.Time
}

// Store holds the last maxMessages messages of each session. Sessions idle
// for longer than ttl are dropped by Cleanup.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

// NewStore creates a store. maxMessages <= 0 defaults to 20 and ttl <= 0 to
// one hour.
func NewStore(maxMessages int, ttl time.Duration) *Store {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		sessions:    make(map[string]*session),
		maxMessages: maxMessages,
		ttl:         ttl,
		now:         time.Now,
	}
}

// RecordTurn appends a question and its answer to the session.
func (s *Store) RecordTurn(sessionID, question, answer string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	sess.messages = append(sess.messages,
		Message{Role: RoleUser, Content: question, Timestamp: now},
		Message{Role: RoleAssistant, Content: answer, Timestamp: now},
	)
	if len(sess.messages) > s.maxMessages {
		sess.messages = sess.messages[len(sess.messages)-s.maxMessages:]
	}
	sess.updatedAt = now
}

// History returns a copy of the session's messages, oldest first.
func (s *Store) History(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		return nil
	}
	out := make([]Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Contextualize prefixes question with the session history. Without history
// the question is returned unchanged.
func (s *Store) Contextualize(sessionID, question string) string {
	history := FormatHistory(s.History(sessionID))
	if history == "" {
		return question
	}
	return "Previous conversation:\n" + history + "\nCurrent question: " + question
}

// Clear removes a session.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup drops expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

func (s *Store) expired(sess *session) bool {
	return s.now().Sub(sess.updatedAt) > s.ttl
}

// FormatHistory renders messages as "User: ..." / "Assistant: ..." lines.
func FormatHistory(messages []Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			sb.WriteString("User: ")
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}
