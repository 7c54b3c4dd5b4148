package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/pkg/metrics"
)

const (
	// StreamName is the relay's inbound work queue stream.
	StreamName = "RELAY_INBOUND"

	// Subject is the single topic all envelopes are published to.
	Subject = "relay.inbound"

	// ConsumerName is the durable consumer shared by all worker instances.
	ConsumerName = "relay-workers"

	// ackWait bounds one processing attempt. A worker that crashes, or
	// stalls past this, gets the envelope redelivered; the session lock is
	// the only per-conversation re-entrancy guard.
	ackWait = 5 * time.Minute
)

// Queue is the durable, at-least-once envelope transport between the
// admission gate and the workers.
type Queue struct {
	client *Client
}

// NewQueue creates a queue on an established NATS connection.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// EnsureStream creates the work queue stream if it does not exist.
func (q *Queue) EnsureStream(ctx context.Context) error {
	js := q.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{Subject},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Inbound chat events awaiting a session worker",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish places an envelope on the queue.
func (q *Queue) Publish(ctx context.Context, envelope *model.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if _, err := q.client.JetStream().Publish(ctx, Subject, data); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	metrics.QueuePublishesTotal.WithLabelValues(envelope.Namespace).Inc()
	return nil
}

// Handler processes one raw envelope. Calling ack marks the message
// consumed; a handler that returns without acking causes redelivery after
// the ack wait.
type Handler func(data []byte, ack func())

// Consume attaches a durable consumer and invokes handler for every
// delivered message until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	js := q.client.JetStream()

	consumer, err := js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxAckPending: 64,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Data(), func() {
			if err := msg.Ack(); err != nil {
				q.client.logger.Error("failed to ack message", zap.Error(err))
			}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Stop()
	return nil
}
