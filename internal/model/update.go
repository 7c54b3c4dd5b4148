package model

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

// User is the sender identity carried by an inbound update.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Username     string `json:"username,omitempty"`
}

// ChatRef identifies the remote conversation an update belongs to.
type ChatRef struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// IncomingMessage is the message part of a webhook update.
type IncomingMessage struct {
	MessageID int64   `json:"message_id"`
	From      User    `json:"from"`
	Chat      ChatRef `json:"chat"`
	Date      int64   `json:"date"`
	Text      string  `json:"text"`
}

// Update is one inbound chat-platform webhook event.
type Update struct {
	UpdateID int64           `json:"update_id"`
	Message  IncomingMessage `json:"message"`
}

// maxInboundTextLength bounds inbound message text (~100KB, matching the
// ingress content limit).
const maxInboundTextLength = 100000

// Validate checks the update against the webhook schema.
func (u *Update) Validate() error {
	if u.Message.From.ID == 0 {
		return errors.New("missing sender id")
	}
	if u.Message.Chat.ID == 0 {
		return errors.New("missing chat id")
	}
	if u.Message.Text == "" {
		return errors.New("message text cannot be empty")
	}
	if len(u.Message.Text) > maxInboundTextLength {
		return errors.New("message text exceeds maximum length")
	}
	if !utf8.ValidString(u.Message.Text) {
		return errors.New("message text must be valid UTF-8")
	}
	return nil
}

// ConversationID returns the remote conversation identifier as the opaque
// string used for storage keys.
func (u *Update) ConversationID() string {
	return strconv.FormatInt(u.Message.Chat.ID, 10)
}

// SenderID returns the remote sender identifier as an opaque string.
func (u *Update) SenderID() string {
	return strconv.FormatInt(u.Message.From.ID, 10)
}
