// Package model defines data structures for the session relay.
package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the live transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionState is the logical content of one conversation. It is persisted
// inside Session.State as an opaque JSON blob; the store never interprets it.
type SessionState struct {
	SystemPrompt     string        `json:"prompt"`
	StorySetting     string        `json:"story,omitempty"`
	RollingSummaries []string      `json:"histories,omitempty"`
	Messages         []ChatMessage `json:"messages"`
	SelectedModel    string        `json:"model,omitempty"`
}

// AddSystemMessage appends a system message to the transcript.
func (s *SessionState) AddSystemMessage(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: RoleSystem, Content: content})
}

// AddUserMessage appends a user message to the transcript.
func (s *SessionState) AddUserMessage(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: RoleUser, Content: content})
}

// AddAssistantMessage appends an assistant message to the transcript.
func (s *SessionState) AddAssistantMessage(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: RoleAssistant, Content: content})
}

// Undo removes the most recent user message and everything after it, so a
// user/assistant pair is always removed together and an assistant message is
// never left without the user message that prompted it. A transcript without
// any user message is left unchanged.
func (s *SessionState) Undo() {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			s.Messages = s.Messages[:i]
			return
		}
	}
}

// LastUserMessage returns the content of the most recent user message.
func (s *SessionState) LastUserMessage() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// Clear resets the whole state.
func (s *SessionState) Clear() {
	*s = SessionState{}
}

// ClearMessages drops the transcript, leaving prompt, story and summaries.
func (s *SessionState) ClearMessages() {
	s.Messages = nil
}

// Dehydrate serializes the state to its storage blob.
func (s *SessionState) Dehydrate() ([]byte, error) {
	return json.Marshal(s)
}

// Hydrate replaces the state from a storage blob. An empty blob yields the
// zero state.
func (s *SessionState) Hydrate(blob []byte) error {
	*s = SessionState{}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, s)
}

// SessionLock is the advisory processing lock. An absent or past expiry
// means unlocked.
type SessionLock struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Held reports whether the lock is valid at the given time.
func (l SessionLock) Held(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.After(now)
}

// Session is the persisted record of one (namespace, remote conversation)
// pair: the state blob plus the advisory lock.
type Session struct {
	Namespace            string          `json:"namespace"`
	RemoteConversationID string          `json:"remote_conversation_id"`
	RemoteUserID         string          `json:"remote_user_id"`
	State                json.RawMessage `json:"state"`
	Lock                 SessionLock     `json:"lock"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewSession creates a session for a first inbound event. The event that
// creates the session is already in flight, so the caller acquires the lock
// immediately after saving.
func NewSession(namespace, conversationID, userID string) *Session {
	now := time.Now()
	state, _ := (&SessionState{}).Dehydrate()
	return &Session{
		Namespace:            namespace,
		RemoteConversationID: conversationID,
		RemoteUserID:         userID,
		State:                state,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
