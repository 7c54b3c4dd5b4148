package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/internal/store"
	"github.com/capitalize-ai/session-relay/pkg/logger"
	"github.com/capitalize-ai/session-relay/pkg/metrics"
)

// Fixed sender-facing replies for policy rejections.
const (
	replyAccessDenied    = "Access Denied"
	replyAccountDisabled = "Your account have been disabled."
	replyLockHeld        = "A message already in queue. Please wait"
)

// Publisher places envelopes on the work queue.
type Publisher interface {
	Publish(ctx context.Context, envelope *model.Envelope) error
}

// Delivery sends a reply to a conversation on the chat platform.
type Delivery interface {
	SendMessage(ctx context.Context, namespace string, chatID int64, text string) error
}

// AdmissionResult reports the outcome of one admission attempt.
type AdmissionResult struct {
	Enqueued bool
	Reason   string
}

// AdmissionService validates, gates and enqueues inbound webhook events.
// The session lock is always written to storage before the envelope is
// published: a crash between the two fails safe as locked-but-unqueued, and
// the lock TTL clears it.
type AdmissionService struct {
	cfg        *config.Config
	sessions   store.SessionStore
	identities store.IdentityStore
	queue      Publisher
	delivery   Delivery
	logger     *logger.Logger
}

// NewAdmissionService creates an admission service.
func NewAdmissionService(
	cfg *config.Config,
	sessions store.SessionStore,
	identities store.IdentityStore,
	queue Publisher,
	delivery Delivery,
	log *logger.Logger,
) *AdmissionService {
	return &AdmissionService{
		cfg:        cfg,
		sessions:   sessions,
		identities: identities,
		queue:      queue,
		delivery:   delivery,
		logger:     log,
	}
}

// Admit runs the admission gate for one inbound update. Policy rejections
// (allow-list, disabled account, lock held) reply directly to the sender and
// return a non-enqueued result; they are not errors at the HTTP boundary.
func (s *AdmissionService) Admit(ctx context.Context, namespace string, update *model.Update) (*AdmissionResult, error) {
	ns, ok := s.cfg.Namespace(namespace)
	if !ok {
		return nil, ErrNamespaceNotFound
	}

	if err := update.Validate(); err != nil {
		metrics.AdmissionsTotal.WithLabelValues(ns.Name, "invalid").Inc()
		return nil, &ValidationError{Reason: err.Error()}
	}

	chatID := update.Message.Chat.ID
	log := s.logger.WithSession(ns.Name, update.ConversationID())

	if !ns.Allowed(update.SenderID()) {
		metrics.AdmissionsTotal.WithLabelValues(ns.Name, "denied").Inc()
		if err := s.delivery.SendMessage(ctx, ns.Name, chatID, replyAccessDenied); err != nil {
			log.Warn("failed to send access denied reply", zap.Error(err))
		}
		return &AdmissionResult{Reason: "sender not on allow-list"}, nil
	}

	identity, err := s.identities.UpsertByRemoteID(ctx, model.IdentityFromUpdate(ns.Name, update))
	if err != nil {
		return nil, err
	}
	if !identity.IsAllowed {
		metrics.AdmissionsTotal.WithLabelValues(ns.Name, "disabled").Inc()
		if err := s.delivery.SendMessage(ctx, ns.Name, chatID, replyAccountDisabled); err != nil {
			log.Warn("failed to send disabled account reply", zap.Error(err))
		}
		return &AdmissionResult{Reason: "account disabled"}, nil
	}

	session, err := s.sessions.Find(ctx, ns.Name, update.ConversationID())
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = model.NewSession(ns.Name, update.ConversationID(), update.SenderID())
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
	}

	acquired, err := s.sessions.AcquireLock(ctx, ns.Name, update.ConversationID(), s.cfg.SessionLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		metrics.AdmissionsTotal.WithLabelValues(ns.Name, "lock_held").Inc()
		metrics.LockContentionTotal.WithLabelValues(ns.Name).Inc()
		if err := s.delivery.SendMessage(ctx, ns.Name, chatID, replyLockHeld); err != nil {
			log.Warn("failed to send lock contention reply", zap.Error(err))
		}
		return &AdmissionResult{Reason: "a message is already in flight"}, nil
	}

	envelope := &model.Envelope{
		ID:         uuid.New().String(),
		Namespace:  ns.Name,
		Update:     *update,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Publish(ctx, envelope); err != nil {
		// The lock stays set; its TTL clears it. Failing the admission here
		// is required, since no worker will ever see this message.
		metrics.AdmissionsTotal.WithLabelValues(ns.Name, "publish_failed").Inc()
		return nil, err
	}

	metrics.AdmissionsTotal.WithLabelValues(ns.Name, "enqueued").Inc()
	log.Info("event enqueued", zap.String("envelope_id", envelope.ID))
	return &AdmissionResult{Enqueued: true}, nil
}
