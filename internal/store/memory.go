package store

import (
	"context"
	"sync"
	"time"

	"github.com/capitalize-ai/session-relay/internal/model"
)

// MemoryStore implements SessionStore and IdentityStore in process memory.
// It is used by tests and by single-node deployments without Redis.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]*model.Session
	locks      map[string]time.Time
	identities map[string]*model.Identity
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*model.Session),
		locks:      make(map[string]time.Time),
		identities: make(map[string]*model.Identity),
	}
}

func memKey(namespace, id string) string {
	return namespace + ":" + id
}

// Find implements SessionStore.
func (s *MemoryStore) Find(ctx context.Context, namespace, conversationID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[memKey(namespace, conversationID)]
	if !ok {
		return nil, nil
	}
	copied := *session
	if expires, ok := s.locks[memKey(namespace, conversationID)]; ok && expires.After(time.Now()) {
		e := expires
		copied.Lock.ExpiresAt = &e
	} else {
		copied.Lock.ExpiresAt = nil
	}
	return &copied, nil
}

// Save implements SessionStore.
func (s *MemoryStore) Save(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	copied.UpdatedAt = time.Now()
	s.sessions[memKey(session.Namespace, session.RemoteConversationID)] = &copied
	return nil
}

// Remove implements SessionStore.
func (s *MemoryStore) Remove(ctx context.Context, namespace, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, memKey(namespace, conversationID))
	delete(s.locks, memKey(namespace, conversationID))
	return nil
}

// AcquireLock implements SessionStore. The check and write happen under one
// mutex hold, mirroring the atomic conditional write of the Redis store.
func (s *MemoryStore) AcquireLock(ctx context.Context, namespace, conversationID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(namespace, conversationID)
	if expires, ok := s.locks[key]; ok && expires.After(time.Now()) {
		return false, nil
	}
	s.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// ReleaseLock implements SessionStore.
func (s *MemoryStore) ReleaseLock(ctx context.Context, namespace, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, memKey(namespace, conversationID))
	return nil
}

// UpsertByRemoteID implements IdentityStore.
func (s *MemoryStore) UpsertByRemoteID(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(identity.Namespace, identity.RemoteID)
	now := time.Now()
	stored := *identity
	if existing, ok := s.identities[key]; ok {
		stored.IsAllowed = existing.IsAllowed
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.identities[key] = &stored

	copied := stored
	return &copied, nil
}

// List implements IdentityStore.
func (s *MemoryStore) List(ctx context.Context, namespace string) ([]model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var identities []model.Identity
	for _, identity := range s.identities {
		if identity.Namespace == namespace {
			identities = append(identities, *identity)
		}
	}
	return identities, nil
}

// SetAllowed implements IdentityStore.
func (s *MemoryStore) SetAllowed(ctx context.Context, namespace, remoteID string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[memKey(namespace, remoteID)]
	if !ok {
		return ErrNotFound
	}
	identity.IsAllowed = allowed
	identity.UpdatedAt = time.Now()
	return nil
}
