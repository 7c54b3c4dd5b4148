package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RELAY_NAMESPACES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 60*time.Second, cfg.SessionLockTTL)
	assert.Equal(t, 4000, cfg.MaxTextLength)
	assert.Equal(t, "mock", cfg.DefaultProvider)
	assert.Empty(t, cfg.Namespaces)
}

func TestLoadNamespaces(t *testing.T) {
	t.Setenv("RELAY_NAMESPACES", "fiction, Support")
	t.Setenv("RELAY_FICTION_BOT_TOKEN", "token-a")
	t.Setenv("RELAY_FICTION_PROVIDER", "openai")
	t.Setenv("RELAY_FICTION_MODEL", "gpt-4o")
	t.Setenv("RELAY_FICTION_USER_ALLOWLIST", "42, 43")
	t.Setenv("RELAY_SUPPORT_BOT_TOKEN", "token-b")
	t.Setenv("RELAY_SUPPORT_WEBHOOK_SECRET", "s3cret")
	t.Setenv("ASSETS_DIR", "/data")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Namespaces, 2)

	fiction, ok := cfg.Namespace("fiction")
	require.True(t, ok)
	assert.Equal(t, "token-a", fiction.BotToken)
	assert.Equal(t, "openai", fiction.Provider)
	assert.Equal(t, "gpt-4o", fiction.Model)
	assert.Equal(t, []string{"42", "43"}, fiction.AllowList)
	assert.Equal(t, "/data/prompts/fiction", fiction.PromptsDir)
	assert.Equal(t, "/data/sessions/fiction", fiction.SessionsDir)

	// Namespace names are normalized to lower case and matched without case.
	support, ok := cfg.Namespace("SUPPORT")
	require.True(t, ok)
	assert.Equal(t, "support", support.Name)
	assert.Equal(t, "mock", support.Provider, "unset provider falls back to the default")
	assert.Equal(t, "s3cret", support.WebhookSecret)
}

func TestLoadMissingBotToken(t *testing.T) {
	t.Setenv("RELAY_NAMESPACES", "fiction")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_FICTION_BOT_TOKEN")
}

func TestNamespaceAllowed(t *testing.T) {
	open := NamespaceConfig{Name: "open"}
	assert.True(t, open.Allowed("anyone"), "empty allow-list admits all")

	gated := NamespaceConfig{Name: "gated", AllowList: []string{"42"}}
	assert.True(t, gated.Allowed("42"))
	assert.False(t, gated.Allowed("43"))
}
