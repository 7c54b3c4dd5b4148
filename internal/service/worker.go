package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/assets"
	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/llm"
	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/internal/store"
	"github.com/capitalize-ai/session-relay/pkg/logger"
	"github.com/capitalize-ai/session-relay/pkg/metrics"
)

const replyEmptyContent = "**Error: LLM engine return empty content**"

// Worker consumes envelopes from the queue. Every envelope ends in exactly
// one ack, and every session that was hydrated ends in exactly one
// persist-and-unlock, regardless of how processing went. The session lock is
// the only per-conversation re-entrancy guard; the queue never redelivers on
// a processing error, only on crash-before-ack.
type Worker struct {
	cfg      *config.Config
	sessions store.SessionStore
	registry *llm.Registry
	delivery Delivery
	commands *CommandService
	logger   *logger.Logger
}

// NewWorker creates a session worker.
func NewWorker(
	cfg *config.Config,
	sessions store.SessionStore,
	registry *llm.Registry,
	delivery Delivery,
	commands *CommandService,
	log *logger.Logger,
) *Worker {
	return &Worker{
		cfg:      cfg,
		sessions: sessions,
		registry: registry,
		delivery: delivery,
		commands: commands,
		logger:   log,
	}
}

// Handle processes one raw queue message. It acks unconditionally: a
// malformed envelope has no reply destination and is dropped; a processing
// error has already been reported to the user in chat.
func (w *Worker) Handle(data []byte, ack func()) {
	defer ack()

	ctx := context.Background()

	var envelope model.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		w.logger.Error("dropping malformed envelope", zap.Error(err))
		metrics.WorkerProcessedTotal.WithLabelValues("unknown", "envelope_error").Inc()
		return
	}

	ns, ok := w.cfg.Namespace(envelope.Namespace)
	if !ok {
		w.logger.Error("dropping envelope for unknown namespace",
			zap.String("namespace", envelope.Namespace))
		metrics.WorkerProcessedTotal.WithLabelValues(envelope.Namespace, "envelope_error").Inc()
		return
	}

	session, state, err := w.loadSession(ctx, ns, &envelope)
	if err != nil {
		// Without a hydrated session there is nothing to persist or unlock;
		// the lock TTL is the backstop.
		w.logger.Error("failed to load session", zap.Error(err),
			zap.String("namespace", ns.Name))
		metrics.WorkerProcessedTotal.WithLabelValues(ns.Name, "load_error").Inc()
		return
	}

	w.process(ctx, ns, &envelope, session, state)
}

// loadSession loads or creates the session record and hydrates its state.
func (w *Worker) loadSession(ctx context.Context, ns *config.NamespaceConfig, envelope *model.Envelope) (*model.Session, *model.SessionState, error) {
	conversationID := envelope.Update.ConversationID()

	session, err := w.sessions.Find(ctx, ns.Name, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		// Admission normally creates the session; handle the gap anyway.
		session = model.NewSession(ns.Name, conversationID, envelope.Update.SenderID())
		if err := w.sessions.Save(ctx, session); err != nil {
			return nil, nil, err
		}
	}

	state := &model.SessionState{}
	if err := state.Hydrate(session.State); err != nil {
		return nil, nil, err
	}
	return session, state, nil
}

// process routes the message and guarantees persist-and-unlock afterwards,
// whatever the routing did.
func (w *Worker) process(ctx context.Context, ns *config.NamespaceConfig, envelope *model.Envelope, session *model.Session, state *model.SessionState) {
	log := w.logger.WithSession(ns.Name, session.RemoteConversationID)

	defer func() {
		if blob, err := state.Dehydrate(); err != nil {
			log.Error("failed to serialize session state", zap.Error(err))
		} else {
			session.State = blob
		}
		if err := w.sessions.Save(ctx, session); err != nil {
			log.Error("failed to persist session", zap.Error(err))
		}
		if err := w.sessions.ReleaseLock(ctx, ns.Name, session.RemoteConversationID); err != nil {
			log.Error("failed to release session lock", zap.Error(err))
		}
	}()

	err := w.route(ctx, ns, envelope, state)
	if err == nil {
		metrics.WorkerProcessedTotal.WithLabelValues(ns.Name, "ok").Inc()
		return
	}

	metrics.WorkerProcessedTotal.WithLabelValues(ns.Name, "error").Inc()
	log.Error("processing failed", zap.Error(err))
	reply := "Error: " + err.Error()
	if sendErr := w.reply(ctx, ns, envelope, reply); sendErr != nil {
		log.Error("failed to send error reply", zap.Error(sendErr))
	}
}

// route dispatches to the command interpreter or the model exchange.
func (w *Worker) route(ctx context.Context, ns *config.NamespaceConfig, envelope *model.Envelope, state *model.SessionState) error {
	text := envelope.Update.Message.Text
	if !strings.HasPrefix(text, "/") {
		state.AddUserMessage(text)
		return w.exchange(ctx, ns, envelope, state)
	}

	client, err := w.registry.Client(ns.Provider)
	if err != nil {
		return err
	}
	return w.commands.Handle(ctx, text, &CommandContext{
		State:    state,
		Client:   client,
		Prompts:  assets.NewStore(ns.PromptsDir),
		Sessions: assets.NewStore(ns.SessionsDir),
		Reply: func(ctx context.Context, reply string) error {
			return w.reply(ctx, ns, envelope, reply)
		},
		SendRequest: func(ctx context.Context) error {
			return w.exchange(ctx, ns, envelope, state)
		},
	})
}

// exchange runs the model call for the current state and delivers the reply.
// An empty completion is not an error: the user gets a fixed notice and the
// empty turn is not recorded.
func (w *Worker) exchange(ctx context.Context, ns *config.NamespaceConfig, envelope *model.Envelope, state *model.SessionState) error {
	client, err := w.registry.Client(ns.Provider)
	if err != nil {
		return err
	}

	req := BuildCompletionRequest(state, ns, w.cfg.MaxTokens)

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Chat(callCtx, req)
	if err != nil {
		metrics.RecordLLMRequest(client.Name(), "error", time.Since(start).Seconds(), 0, 0)
		return err
	}
	metrics.RecordLLMRequest(client.Name(), "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	if resp.Content == "" {
		w.logger.Warn("empty completion content",
			zap.String("namespace", ns.Name), zap.String("provider", client.Name()))
		return w.reply(ctx, ns, envelope, replyEmptyContent)
	}

	state.AddAssistantMessage(resp.Content)
	return w.reply(ctx, ns, envelope, resp.Content)
}

func (w *Worker) reply(ctx context.Context, ns *config.NamespaceConfig, envelope *model.Envelope, text string) error {
	return w.delivery.SendMessage(ctx, ns.Name, envelope.Update.Message.Chat.ID, text)
}
