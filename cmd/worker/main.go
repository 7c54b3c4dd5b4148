// Package main is the entry point for the session worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/llm"
	natsclient "github.com/capitalize-ai/session-relay/internal/nats"
	"github.com/capitalize-ai/session-relay/internal/service"
	"github.com/capitalize-ai/session-relay/internal/store"
	"github.com/capitalize-ai/session-relay/internal/telegram"
	"github.com/capitalize-ai/session-relay/pkg/logger"
	"github.com/capitalize-ai/session-relay/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting session worker")

	// Initialize tracing if enabled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "session-relay-worker", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	queue := natsclient.NewQueue(natsClient)
	if err := queue.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	sessionStore := store.NewRedisStore(redisClient)
	if err := sessionStore.Ping(ctx); err != nil {
		log.Error("failed to connect to Redis", zap.Error(err))
		os.Exit(1)
	}

	// Build the provider registry from whatever is configured
	registry := buildRegistry(cfg, log)
	warmUp(ctx, registry, log)

	// Delivery client for the chat platform
	bots := make(map[string]telegram.Bot, len(cfg.Namespaces))
	for _, ns := range cfg.Namespaces {
		bots[ns.Name] = telegram.Bot{
			Token:         ns.BotToken,
			WebhookURL:    ns.WebhookURL,
			WebhookSecret: ns.WebhookSecret,
		}
	}
	delivery := telegram.NewClient(bots, cfg.MaxTextLength, log)

	commands := service.NewCommandService(log)
	worker := service.NewWorker(cfg, sessionStore, registry, delivery, commands, log)

	log.Info("consuming inbound queue",
		zap.String("providers", fmt.Sprintf("%v", registry.Names())))

	// Blocks until the context is cancelled by SIGINT/SIGTERM
	if err := queue.Consume(ctx, worker.Handle); err != nil {
		log.Error("consumer stopped", zap.Error(err))
		os.Exit(1)
	}

	log.Info("worker stopped")
}

// buildRegistry wires the configured providers. The mock provider is always
// registered so a namespace can run without any upstream credentials.
func buildRegistry(cfg *config.Config, log *logger.Logger) *llm.Registry {
	registry := llm.NewRegistry(cfg.DefaultProvider)
	registry.Register("mock", llm.NewMockClient())

	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient("openai", llm.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			DefaultModel: cfg.OpenAIModel,
			MaxTokens:    cfg.MaxTokens,
		})
		if err != nil {
			log.Warn("failed to create OpenAI client", zap.Error(err))
		} else {
			registry.Register("openai", client)
		}
	}

	if cfg.AnthropicAPIKey != "" {
		client, err := llm.NewAnthropicClient("anthropic", llm.AnthropicConfig{
			APIKey:       cfg.AnthropicAPIKey,
			DefaultModel: cfg.AnthropicModel,
			MaxTokens:    cfg.MaxTokens,
		})
		if err != nil {
			log.Warn("failed to create Anthropic client", zap.Error(err))
		} else {
			registry.Register("anthropic", client)
		}
	}

	if cfg.CompatBaseURL != "" {
		client, err := llm.NewOpenAIClient("compat", llm.OpenAIConfig{
			APIKey:       cfg.CompatAPIKey,
			BaseURL:      cfg.CompatBaseURL,
			DefaultModel: cfg.CompatModel,
			MaxTokens:    cfg.MaxTokens,
			ModelList:    cfg.CompatModels,
		})
		if err != nil {
			log.Warn("failed to create compatible client", zap.Error(err))
		} else {
			registry.Register("compat", client)
		}
	}

	return registry
}

// warmUp pings each provider once so credential and connectivity problems
// surface at startup instead of on the first user message.
func warmUp(ctx context.Context, registry *llm.Registry, log *logger.Logger) {
	for _, name := range registry.Names() {
		client, err := registry.Client(name)
		if err != nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			log.Warn("provider ping failed",
				zap.String("provider", name),
				zap.Error(err))
		} else {
			log.Info("provider ready", zap.String("provider", name))
		}
		cancel()
	}
}
