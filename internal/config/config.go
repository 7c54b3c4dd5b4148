// Package config provides environment configuration for the relay binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// NamespaceConfig holds the per-tenant bot configuration: credentials,
// provider selection, allow-list and asset locations.
type NamespaceConfig struct {
	Name          string
	Provider      string
	Model         string
	BotToken      string
	WebhookURL    string
	WebhookSecret string
	AllowList     []string
	PromptsDir    string
	SessionsDir   string
}

// Allowed reports whether a sender passes the namespace allow-list. An empty
// allow-list admits everyone.
func (n *NamespaceConfig) Allowed(remoteID string) bool {
	if len(n.AllowList) == 0 {
		return true
	}
	for _, id := range n.AllowList {
		if id == remoteID {
			return true
		}
	}
	return false
}

// Config holds all configuration for the relay.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT settings (operator admin API)
	JWTSecret string

	// Provider settings
	DefaultProvider string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	CompatBaseURL   string
	CompatAPIKey    string
	CompatModel     string
	CompatModels    []string
	ProviderTimeout time.Duration
	MaxTokens       int

	// Relay settings
	SessionLockTTL time.Duration
	MaxTextLength  int
	AssetsDir      string
	Namespaces     []NamespaceConfig

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Providers
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "mock"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", ""),
		CompatBaseURL:   getEnv("COMPAT_BASE_URL", ""),
		CompatAPIKey:    getEnv("COMPAT_API_KEY", ""),
		CompatModel:     getEnv("COMPAT_MODEL", ""),
		CompatModels:    getListEnv("COMPAT_MODELS"),
		ProviderTimeout: getDurationEnv("PROVIDER_TIMEOUT", 2*time.Minute),
		MaxTokens:       getIntEnv("MAX_TOKENS", 4096),

		// Relay
		SessionLockTTL: getDurationEnv("SESSION_LOCK_TTL", 60*time.Second),
		MaxTextLength:  getIntEnv("MAX_TEXT_LENGTH", 4000),
		AssetsDir:      getEnv("ASSETS_DIR", "./var"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	namespaces, err := loadNamespaces(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Namespaces = namespaces

	return cfg, nil
}

// Namespace returns the configuration for a namespace, matched
// case-insensitively.
func (c *Config) Namespace(name string) (*NamespaceConfig, bool) {
	for i := range c.Namespaces {
		if strings.EqualFold(c.Namespaces[i].Name, name) {
			return &c.Namespaces[i], true
		}
	}
	return nil, false
}

// loadNamespaces reads the per-namespace bot variables. RELAY_NAMESPACES is
// a comma list; each entry NS expands to RELAY_<NS>_BOT_TOKEN and friends.
func loadNamespaces(cfg *Config) ([]NamespaceConfig, error) {
	raw := getEnv("RELAY_NAMESPACES", "")
	if raw == "" {
		return nil, nil
	}

	var namespaces []NamespaceConfig
	for _, entry := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(entry))
		if name == "" {
			continue
		}
		prefix := "RELAY_" + strings.ToUpper(name) + "_"

		token := getEnv(prefix+"BOT_TOKEN", "")
		if token == "" {
			return nil, fmt.Errorf("namespace %s: %sBOT_TOKEN is not set", name, prefix)
		}

		ns := NamespaceConfig{
			Name:          name,
			Provider:      getEnv(prefix+"PROVIDER", cfg.DefaultProvider),
			Model:         getEnv(prefix+"MODEL", ""),
			BotToken:      token,
			WebhookURL:    getEnv(prefix+"WEBHOOK_URL", ""),
			WebhookSecret: getEnv(prefix+"WEBHOOK_SECRET", ""),
			AllowList:     getListEnv(prefix + "USER_ALLOWLIST"),
			PromptsDir:    getEnv(prefix+"PROMPTS_DIR", filepath.Join(cfg.AssetsDir, "prompts", name)),
			SessionsDir:   getEnv(prefix+"SESSIONS_DIR", filepath.Join(cfg.AssetsDir, "sessions", name)),
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
