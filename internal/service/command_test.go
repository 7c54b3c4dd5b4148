package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/session-relay/internal/assets"
	"github.com/capitalize-ai/session-relay/internal/llm"
	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/pkg/logger"
)

// fakeProvider is an llm.Client with a configurable model catalog.
type fakeProvider struct {
	llm.MockClient
	models []string
}

func (c *fakeProvider) Models(ctx context.Context) ([]string, error) {
	return c.models, nil
}

type commandFixture struct {
	state        *model.SessionState
	provider     *fakeProvider
	promptsDir   string
	sessionsDir  string
	replies      []string
	requestsSent int
	cc           *CommandContext
	svc          *CommandService
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()

	f := &commandFixture{
		state:       &model.SessionState{},
		provider:    &fakeProvider{},
		promptsDir:  t.TempDir(),
		sessionsDir: t.TempDir(),
	}
	f.cc = &CommandContext{
		State:    f.state,
		Client:   f.provider,
		Prompts:  assets.NewStore(f.promptsDir),
		Sessions: assets.NewStore(f.sessionsDir),
		Reply: func(ctx context.Context, text string) error {
			f.replies = append(f.replies, text)
			return nil
		},
		SendRequest: func(ctx context.Context) error {
			f.requestsSent++
			return nil
		},
	}
	f.svc = NewCommandService(logger.NewNop())
	return f
}

func (f *commandFixture) handle(t *testing.T, command string) error {
	t.Helper()
	return f.svc.Handle(context.Background(), command, f.cc)
}

func (f *commandFixture) writePrompt(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.promptsDir, name), []byte(content), 0o644))
}

func TestCommandParsing(t *testing.T) {
	f := newCommandFixture(t)

	var cmdErr *CommandError
	require.ErrorAs(t, f.handle(t, "/"), &cmdErr)
	assert.Equal(t, "Invalid input", cmdErr.Message)

	require.NoError(t, f.handle(t, "/frobnicate"))
	assert.Equal(t, []string{"Invalid command"}, f.replies)
}

func TestCommandSaveLoad(t *testing.T) {
	f := newCommandFixture(t)
	f.state.AddUserMessage("hello")
	f.state.AddAssistantMessage("hi")
	f.state.StorySetting = "a dark forest"

	require.NoError(t, f.handle(t, "/save"))
	assert.Equal(t, []string{"Chat saved"}, f.replies)
	assert.FileExists(t, filepath.Join(f.sessionsDir, "last_session.json"))

	require.NoError(t, f.handle(t, "/save adventure1"))
	assert.FileExists(t, filepath.Join(f.sessionsDir, "adventure1.json"))

	// Wipe and restore from the named save.
	f.state.Clear()
	require.NoError(t, f.handle(t, "/load adventure1"))
	assert.Equal(t, "Chat loaded", f.replies[len(f.replies)-1])
	assert.Equal(t, "a dark forest", f.state.StorySetting)
	assert.Len(t, f.state.Messages, 2)
}

func TestCommandSaveLoadValidation(t *testing.T) {
	f := newCommandFixture(t)

	var cmdErr *CommandError
	require.ErrorAs(t, f.handle(t, "/save ../../etc/passwd"), &cmdErr)
	assert.Equal(t, "Invalid file name", cmdErr.Message)

	require.ErrorAs(t, f.handle(t, "/load ../secrets"), &cmdErr)
	assert.Equal(t, "Invalid sessions id", cmdErr.Message)

	require.ErrorAs(t, f.handle(t, "/load missing"), &cmdErr)
	assert.Equal(t, "File not found", cmdErr.Message)
}

func TestCommandRetry(t *testing.T) {
	f := newCommandFixture(t)

	t.Run("empty transcript is a no-op", func(t *testing.T) {
		require.NoError(t, f.handle(t, "/retry"))
		assert.Empty(t, f.replies)
		assert.Zero(t, f.requestsSent)
	})

	t.Run("re-sends the last user message", func(t *testing.T) {
		f.state.AddUserMessage("tell me a story")
		f.state.AddAssistantMessage("once upon a time")

		require.NoError(t, f.handle(t, "/retry"))

		assert.Equal(t, []string{"Retrying"}, f.replies)
		assert.Equal(t, 1, f.requestsSent)
		require.Len(t, f.state.Messages, 1)
		assert.Equal(t, "tell me a story", f.state.Messages[0].Content)
		assert.Equal(t, model.RoleUser, f.state.Messages[0].Role)
	})
}

func TestCommandReset(t *testing.T) {
	seed := func(f *commandFixture) {
		f.state.SystemPrompt = "you are a narrator"
		f.state.StorySetting = "a dark forest"
		f.state.RollingSummaries = []string{"they met a wolf"}
		f.state.SelectedModel = "gpt-4o"
		f.state.AddUserMessage("hello")
	}

	t.Run("full reset", func(t *testing.T) {
		f := newCommandFixture(t)
		seed(f)
		require.NoError(t, f.handle(t, "/reset"))
		assert.Equal(t, []string{"Chat reset"}, f.replies)
		assert.Equal(t, model.SessionState{}, *f.state)
	})

	t.Run("prompt scope clears only the prompt", func(t *testing.T) {
		f := newCommandFixture(t)
		seed(f)
		require.NoError(t, f.handle(t, "/reset prompt"))
		assert.Equal(t, []string{"Prompt reset"}, f.replies)
		assert.Empty(t, f.state.SystemPrompt)
		assert.Equal(t, "a dark forest", f.state.StorySetting)
		assert.Len(t, f.state.Messages, 1)
	})

	t.Run("scopes match by prefix", func(t *testing.T) {
		f := newCommandFixture(t)
		seed(f)
		require.NoError(t, f.handle(t, "/reset h"))
		assert.Equal(t, []string{"History reset"}, f.replies)
		assert.Empty(t, f.state.RollingSummaries)

		require.NoError(t, f.handle(t, "/reset sto"))
		assert.Equal(t, "Story reset", f.replies[len(f.replies)-1])
		assert.Empty(t, f.state.StorySetting)

		require.NoError(t, f.handle(t, "/reset mes"))
		assert.Equal(t, "Messages reset", f.replies[len(f.replies)-1])
		assert.Empty(t, f.state.Messages)
	})

	t.Run("unknown scope is silently ignored", func(t *testing.T) {
		f := newCommandFixture(t)
		seed(f)
		require.NoError(t, f.handle(t, "/reset everything"))
		assert.Empty(t, f.replies)
		assert.Len(t, f.state.Messages, 1, "nothing was cleared")
		assert.Equal(t, "you are a narrator", f.state.SystemPrompt)
	})
}

func TestCommandPrompt(t *testing.T) {
	t.Run("no prompts installed", func(t *testing.T) {
		f := newCommandFixture(t)
		require.NoError(t, f.handle(t, "/prompt"))
		assert.Equal(t, []string{"No prompt available."}, f.replies)
	})

	t.Run("listing and selection", func(t *testing.T) {
		f := newCommandFixture(t)
		f.writePrompt(t, "narrator.txt", "You narrate adventures.")
		f.writePrompt(t, "assistant.txt", "You are helpful.")
		f.writePrompt(t, "template.dist.txt", "ignored")

		require.NoError(t, f.handle(t, "/prompt"))
		assert.Equal(t, "1. assistant\n2. narrator\n", f.replies[0])

		require.NoError(t, f.handle(t, "/prompt 2"))
		assert.Equal(t, "Prompt loaded.", f.replies[1])
		assert.Equal(t, "You narrate adventures.", f.state.SystemPrompt)

		require.NoError(t, f.handle(t, "/prompt assistant"))
		assert.Equal(t, "You are helpful.", f.state.SystemPrompt)
	})

	t.Run("alias verbs", func(t *testing.T) {
		f := newCommandFixture(t)
		f.writePrompt(t, "narrator.txt", "You narrate adventures.")

		require.NoError(t, f.handle(t, "/p 1"))
		assert.Equal(t, "You narrate adventures.", f.state.SystemPrompt)
	})

	t.Run("invalid selections", func(t *testing.T) {
		f := newCommandFixture(t)
		f.writePrompt(t, "narrator.txt", "You narrate adventures.")

		var cmdErr *CommandError
		require.ErrorAs(t, f.handle(t, "/prompt 5"), &cmdErr)
		assert.Equal(t, "Invalid prompt offset", cmdErr.Message)

		require.ErrorAs(t, f.handle(t, "/prompt ghost"), &cmdErr)
		assert.Equal(t, "Invalid prompt name", cmdErr.Message)
	})
}

func TestCommandStory(t *testing.T) {
	f := newCommandFixture(t)

	require.NoError(t, f.handle(t, "/story a castle under siege"))
	assert.Equal(t, "a castle under siege", f.state.StorySetting)
	assert.Empty(t, f.replies, "setting the story replies nothing")

	// Bare /story leaves the setting alone.
	require.NoError(t, f.handle(t, "/story"))
	assert.Equal(t, "a castle under siege", f.state.StorySetting)
}

func TestCommandHistory(t *testing.T) {
	f := newCommandFixture(t)

	require.NoError(t, f.handle(t, "/history"))
	assert.Equal(t, []string{"History is empty"}, f.replies)

	f.state.RollingSummaries = []string{"chapter one", "chapter two"}
	require.NoError(t, f.handle(t, "/h"))
	// The header and the summaries arrive as two sequential replies.
	assert.Equal(t, []string{"History is empty", "History:", "chapter one\nchapter two"}, f.replies)
}

func TestCommandModel(t *testing.T) {
	t.Run("provider without a catalog", func(t *testing.T) {
		f := newCommandFixture(t)
		require.NoError(t, f.handle(t, "/model"))
		assert.Equal(t, []string{"No models available."}, f.replies)
	})

	t.Run("listing and selection", func(t *testing.T) {
		f := newCommandFixture(t)
		f.provider.models = []string{"small", "large"}

		require.NoError(t, f.handle(t, "/models"))
		assert.Equal(t, "1. small\n2. large\n", f.replies[0])

		require.NoError(t, f.handle(t, "/model 2"))
		assert.Equal(t, "Model selected.", f.replies[1])
		assert.Equal(t, "large", f.state.SelectedModel)

		require.NoError(t, f.handle(t, "/m small"))
		assert.Equal(t, "small", f.state.SelectedModel)
	})

	t.Run("invalid selection", func(t *testing.T) {
		f := newCommandFixture(t)
		f.provider.models = []string{"small"}

		require.NoError(t, f.handle(t, "/model giant"))
		assert.Equal(t, []string{"Invalid models selected"}, f.replies)
		assert.Empty(t, f.state.SelectedModel)
	})
}

func TestCommandDebug(t *testing.T) {
	f := newCommandFixture(t)
	f.state.SystemPrompt = "you are a narrator"
	f.state.SelectedModel = "gpt-4o"
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	f.state.AddUserMessage(string(long))

	require.NoError(t, f.handle(t, "/debug"))
	require.Len(t, f.replies, 1)

	var dump struct {
		Prompt  string   `json:"prompt"`
		Message []string `json:"message"`
		Model   string   `json:"model"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.replies[0]), &dump))
	assert.Equal(t, "you are a narrator", dump.Prompt)
	assert.Equal(t, "gpt-4o", dump.Model)
	require.Len(t, dump.Message, 1)
	assert.Len(t, dump.Message[0], 103, "content capped at 100 plus ellipsis")
}
