package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateUndo(t *testing.T) {
	t.Run("single pair empties the transcript", func(t *testing.T) {
		state := &SessionState{}
		state.AddUserMessage("a")
		state.AddAssistantMessage("b")

		state.Undo()

		assert.Empty(t, state.Messages)
	})

	t.Run("unanswered user message is removed", func(t *testing.T) {
		state := &SessionState{}
		state.AddUserMessage("a")

		state.Undo()

		assert.Empty(t, state.Messages)
	})

	t.Run("removes trailing user assistant pair", func(t *testing.T) {
		state := &SessionState{}
		state.AddUserMessage("hello")
		state.AddAssistantMessage("hi there")
		state.AddUserMessage("how are you")
		state.AddAssistantMessage("fine")

		state.Undo()

		require.Len(t, state.Messages, 2)
		assert.Equal(t, "hello", state.Messages[0].Content)
		assert.Equal(t, "hi there", state.Messages[1].Content)
	})

	t.Run("removes a dangling user message", func(t *testing.T) {
		state := &SessionState{}
		state.AddUserMessage("hello")
		state.AddAssistantMessage("hi there")
		state.AddUserMessage("unanswered")

		state.Undo()

		require.Len(t, state.Messages, 2)
		assert.Equal(t, RoleAssistant, state.Messages[1].Role)
	})

	t.Run("never strands an assistant message", func(t *testing.T) {
		state := &SessionState{}
		state.AddSystemMessage("be helpful")
		state.AddUserMessage("hello")
		state.AddAssistantMessage("hi")
		state.AddAssistantMessage("anything else?")

		state.Undo()

		require.Len(t, state.Messages, 1)
		assert.Equal(t, RoleSystem, state.Messages[0].Role)
	})

	t.Run("no user message leaves transcript unchanged", func(t *testing.T) {
		state := &SessionState{}
		state.AddSystemMessage("be helpful")

		state.Undo()

		assert.Len(t, state.Messages, 1)
	})
}

func TestSessionStateClear(t *testing.T) {
	state := &SessionState{
		SystemPrompt:     "you are a narrator",
		StorySetting:     "a dark forest",
		RollingSummaries: []string{"they met a wolf"},
		SelectedModel:    "gpt-4o",
	}
	state.AddUserMessage("hello")

	t.Run("ClearMessages keeps everything but the transcript", func(t *testing.T) {
		s := *state
		s.ClearMessages()
		assert.Empty(t, s.Messages)
		assert.Equal(t, "you are a narrator", s.SystemPrompt)
		assert.Equal(t, "a dark forest", s.StorySetting)
		assert.Equal(t, "gpt-4o", s.SelectedModel)
	})

	t.Run("Clear resets everything", func(t *testing.T) {
		s := *state
		s.Clear()
		assert.Equal(t, SessionState{}, s)
	})
}

func TestSessionStateHydrate(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		state := &SessionState{
			SystemPrompt:  "you are a narrator",
			StorySetting:  "a dark forest",
			SelectedModel: "gpt-4o",
		}
		state.AddUserMessage("hello")
		state.AddAssistantMessage("hi")

		blob, err := state.Dehydrate()
		require.NoError(t, err)

		var out SessionState
		require.NoError(t, out.Hydrate(blob))
		assert.Equal(t, *state, out)
	})

	t.Run("empty blob yields zero state", func(t *testing.T) {
		state := &SessionState{SystemPrompt: "stale"}
		require.NoError(t, state.Hydrate(nil))
		assert.Equal(t, SessionState{}, *state)
	})

	t.Run("storage blob uses stable keys", func(t *testing.T) {
		var out SessionState
		blob := []byte(`{"prompt":"p","story":"s","histories":["h1"],"messages":[{"role":"user","content":"hi"}],"model":"m"}`)
		require.NoError(t, out.Hydrate(blob))

		assert.Equal(t, "p", out.SystemPrompt)
		assert.Equal(t, "s", out.StorySetting)
		assert.Equal(t, []string{"h1"}, out.RollingSummaries)
		assert.Equal(t, "m", out.SelectedModel)
		require.Len(t, out.Messages, 1)
		assert.Equal(t, RoleUser, out.Messages[0].Role)
	})
}

func TestSessionLockHeld(t *testing.T) {
	now := time.Now()

	assert.False(t, SessionLock{}.Held(now), "absent expiry is unlocked")

	past := now.Add(-time.Second)
	assert.False(t, SessionLock{ExpiresAt: &past}.Held(now), "past expiry is unlocked")

	future := now.Add(time.Minute)
	assert.True(t, SessionLock{ExpiresAt: &future}.Held(now))
}

func TestNewSession(t *testing.T) {
	session := NewSession("fiction", "12345", "67890")

	assert.Equal(t, "fiction", session.Namespace)
	assert.Equal(t, "12345", session.RemoteConversationID)
	assert.Equal(t, "67890", session.RemoteUserID)
	assert.False(t, session.Lock.Held(time.Now()))

	var state SessionState
	require.NoError(t, state.Hydrate(session.State))
	assert.Equal(t, SessionState{}, state)
}
