package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/capitalize-ai/session-relay/internal/model"
)

const (
	sessionKeyPrefix  = "relay:session:"
	lockKeyPrefix     = "relay:lock:"
	identityKeyPrefix = "relay:identity:"
	identitySetPrefix = "relay:identities:"
)

// RedisStore implements SessionStore and IdentityStore on Redis. The session
// lock is a dedicated key written with SET NX EX, so acquisition is a single
// conditional write and expiry is handled by the server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(namespace, conversationID string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, namespace, conversationID)
}

func lockKey(namespace, conversationID string) string {
	return fmt.Sprintf("%s%s:%s", lockKeyPrefix, namespace, conversationID)
}

func identityKey(namespace, remoteID string) string {
	return fmt.Sprintf("%s%s:%s", identityKeyPrefix, namespace, remoteID)
}

// Find implements SessionStore. The lock expiry is read from the lock key's
// remaining TTL so the returned record reflects the live lock.
func (s *RedisStore) Find(ctx context.Context, namespace, conversationID string) (*model.Session, error) {
	val, err := s.client.Get(ctx, sessionKey(namespace, conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, lockKey(namespace, conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session lock: %w", err)
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		session.Lock.ExpiresAt = &expires
	} else {
		session.Lock.ExpiresAt = nil
	}

	return &session, nil
}

// Save implements SessionStore.
func (s *RedisStore) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now()
	val, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := sessionKey(session.Namespace, session.RemoteConversationID)
	if err := s.client.Set(ctx, key, val, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Remove implements SessionStore.
func (s *RedisStore) Remove(ctx context.Context, namespace, conversationID string) error {
	keys := []string{
		sessionKey(namespace, conversationID),
		lockKey(namespace, conversationID),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// AcquireLock implements SessionStore with SET NX EX: the check and the
// write are one server-side operation, so concurrent callers cannot both
// observe an expired lock and proceed.
func (s *RedisStore) AcquireLock(ctx context.Context, namespace, conversationID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(namespace, conversationID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock implements SessionStore.
func (s *RedisStore) ReleaseLock(ctx context.Context, namespace, conversationID string) error {
	if err := s.client.Del(ctx, lockKey(namespace, conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// UpsertByRemoteID implements IdentityStore.
func (s *RedisStore) UpsertByRemoteID(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	key := identityKey(identity.Namespace, identity.RemoteID)
	now := time.Now()

	stored := *identity
	val, err := s.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		stored.CreatedAt = now
	case err != nil:
		return nil, fmt.Errorf("failed to read identity: %w", err)
	default:
		var existing model.Identity
		if err := json.Unmarshal([]byte(val), &existing); err != nil {
			return nil, fmt.Errorf("failed to decode identity: %w", err)
		}
		stored.IsAllowed = existing.IsAllowed
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, identitySetPrefix+stored.Namespace, stored.RemoteID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to write identity: %w", err)
	}

	return &stored, nil
}

// List implements IdentityStore.
func (s *RedisStore) List(ctx context.Context, namespace string) ([]model.Identity, error) {
	ids, err := s.client.SMembers(ctx, identitySetPrefix+namespace).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	identities := make([]model.Identity, 0, len(ids))
	for _, id := range ids {
		val, err := s.client.Get(ctx, identityKey(namespace, id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read identity: %w", err)
		}
		var identity model.Identity
		if err := json.Unmarshal([]byte(val), &identity); err != nil {
			return nil, fmt.Errorf("failed to decode identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

// SetAllowed implements IdentityStore.
func (s *RedisStore) SetAllowed(ctx context.Context, namespace, remoteID string, allowed bool) error {
	key := identityKey(namespace, remoteID)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read identity: %w", err)
	}

	var identity model.Identity
	if err := json.Unmarshal([]byte(val), &identity); err != nil {
		return fmt.Errorf("failed to decode identity: %w", err)
	}
	identity.IsAllowed = allowed
	identity.UpdatedAt = time.Now()

	data, err := json.Marshal(&identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}
