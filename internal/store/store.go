// Package store persists sessions and sender identities.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/session-relay/internal/model"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("record not found")
)

// SessionStore persists one record per (namespace, remote conversation id)
// plus its advisory lock.
//
// AcquireLock must be a single atomic conditional write: it succeeds only if
// no unexpired lock exists, and on success the lock is set to now+ttl. Two
// concurrent callers must never both succeed on the same session.
type SessionStore interface {
	// Find returns the session, or nil if absent (not an error).
	Find(ctx context.Context, namespace, conversationID string) (*model.Session, error)

	// Save upserts the session record.
	Save(ctx context.Context, session *model.Session) error

	// Remove deletes the session and its lock. Missing sessions are not an
	// error.
	Remove(ctx context.Context, namespace, conversationID string) error

	// AcquireLock atomically takes the session lock for ttl. Returns false
	// if the lock is currently held.
	AcquireLock(ctx context.Context, namespace, conversationID string, ttl time.Duration) (bool, error)

	// ReleaseLock clears the session lock. Releasing an unheld lock is not
	// an error.
	ReleaseLock(ctx context.Context, namespace, conversationID string) error
}

// IdentityStore persists sender identities per namespace.
type IdentityStore interface {
	// UpsertByRemoteID creates the identity or refreshes its profile and
	// last-seen fields. The stored IsAllowed flag is preserved on update.
	UpsertByRemoteID(ctx context.Context, identity *model.Identity) (*model.Identity, error)

	// List returns all identities in a namespace.
	List(ctx context.Context, namespace string) ([]model.Identity, error)

	// SetAllowed toggles the admission flag for one identity.
	SetAllowed(ctx context.Context, namespace, remoteID string, allowed bool) error
}
