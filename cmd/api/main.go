// Package main is the entry point for the ingress API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/handler"
	"github.com/capitalize-ai/session-relay/internal/middleware"
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

	log.Info("starting API server")

	if len(cfg.Namespaces) == 0 {
		log.Warn("no namespaces configured, set RELAY_NAMESPACES")
	}

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "session-relay", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
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

	// Ensure the inbound work queue exists
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

	// Register webhooks for namespaces that declare a public URL
	if err := delivery.RegisterWebhooks(ctx); err != nil {
		log.Warn("webhook registration incomplete", zap.Error(err))
	}

	// Initialize services
	admissionSvc := service.NewAdmissionService(cfg, sessionStore, sessionStore, queue, delivery, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(sessionStore, natsClient)
	webhookHandler := handler.NewWebhookHandler(admissionSvc, log)
	adminHandler := handler.NewAdminHandler(cfg, sessionStore, sessionStore, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Platform webhook ingress, gated by the per-namespace secret token
	r.Route("/webhook/{namespace}", func(r chi.Router) {
		r.Use(middleware.WebhookSecret(cfg))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Post("/", webhookHandler.Receive)
	})

	// Operator API with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/namespaces", adminHandler.ListNamespaces)

		r.Route("/namespaces/{namespace}", func(r chi.Router) {
			r.Get("/identities", adminHandler.ListIdentities)
			r.Put("/identities/{id}/allowed", adminHandler.SetIdentityAllowed)

			r.Get("/sessions/{id}", adminHandler.GetSession)
			r.Delete("/sessions/{id}", adminHandler.DeleteSession)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
