package model

import (
	"time"
)

// Identity is the stored record of a remote sender, scoped to a namespace.
// IsAllowed=false blocks admission before anything is queued.
type Identity struct {
	RemoteID     string    `json:"remote_id"`
	Namespace    string    `json:"namespace"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	IsBot        bool      `json:"is_bot"`
	IsAllowed    bool      `json:"is_allowed"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IdentityFromUpdate builds the upsert payload for an inbound update's sender.
func IdentityFromUpdate(namespace string, u *Update) *Identity {
	return &Identity{
		RemoteID:     u.SenderID(),
		Namespace:    namespace,
		Username:     u.Message.From.Username,
		FirstName:    u.Message.From.FirstName,
		LastName:     u.Message.From.LastName,
		LanguageCode: u.Message.From.LanguageCode,
		IsBot:        u.Message.From.IsBot,
		IsAllowed:    true,
		LastSeenAt:   time.Now(),
	}
}
