package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/session-relay/internal/model"
)

func TestMemoryStoreSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	found, err := s.Find(ctx, "fiction", "100")
	require.NoError(t, err)
	assert.Nil(t, found, "absent session is nil, not an error")

	session := model.NewSession("fiction", "100", "42")
	require.NoError(t, s.Save(ctx, session))

	found, err = s.Find(ctx, "fiction", "100")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "42", found.RemoteUserID)

	require.NoError(t, s.Remove(ctx, "fiction", "100"))
	found, err = s.Find(ctx, "fiction", "100")
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.NoError(t, s.Remove(ctx, "fiction", "100"), "removing a missing session is not an error")
}

func TestMemoryStoreLocking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.AcquireLock(ctx, "fiction", "100", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, "fiction", "100", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be re-acquired")

	// A different conversation is independent.
	ok, err = s.AcquireLock(ctx, "fiction", "200", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.ReleaseLock(ctx, "fiction", "100"))
	ok, err = s.AcquireLock(ctx, "fiction", "100", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be re-acquired")
}

func TestMemoryStoreLockExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.AcquireLock(ctx, "fiction", "100", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err = s.AcquireLock(ctx, "fiction", "100", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock behaves as released")
}

func TestMemoryStoreFindReflectsLock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Save(ctx, model.NewSession("fiction", "100", "42")))

	found, err := s.Find(ctx, "fiction", "100")
	require.NoError(t, err)
	assert.False(t, found.Lock.Held(time.Now()))

	ok, err := s.AcquireLock(ctx, "fiction", "100", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	found, err = s.Find(ctx, "fiction", "100")
	require.NoError(t, err)
	assert.True(t, found.Lock.Held(time.Now()))
}

func TestMemoryStoreIdentities(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	identity := &model.Identity{
		RemoteID:  "42",
		Namespace: "fiction",
		Username:  "ada",
		IsAllowed: true,
	}

	stored, err := s.UpsertByRemoteID(ctx, identity)
	require.NoError(t, err)
	assert.True(t, stored.IsAllowed)

	require.NoError(t, s.SetAllowed(ctx, "fiction", "42", false))

	// A later upsert refreshes the profile but must not flip the flag back.
	identity.Username = "ada_l"
	stored, err = s.UpsertByRemoteID(ctx, identity)
	require.NoError(t, err)
	assert.False(t, stored.IsAllowed, "upsert preserves the stored admission flag")
	assert.Equal(t, "ada_l", stored.Username)

	list, err := s.List(ctx, "fiction")
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = s.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.SetAllowed(ctx, "fiction", "unknown", true), ErrNotFound)
}
