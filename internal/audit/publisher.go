// Package audit provides transition event capture and processing.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/metrics"
	"github.com/meatcoin/meatcoin/internal/model"
)

const (
	// StreamKey is the Redis stream for transition events.
	StreamKey = "stream:transition_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:transition_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// TransitionEventPayload is the compressed event format for the Redis stream.
// Amount crosses the wire as a decimal string so the full u64 range survives.
type TransitionEventPayload struct {
	Op           string   `json:"op"`
	Actor        string   `json:"a"`              // actor identity, hex
	Counterparty string   `json:"cp,omitempty"`   // counterparty identity, hex
	Amount       string   `json:"amt"`            // decimal u64
	Tags         []string `json:"tags,omitempty"` // free-form labels
	OccurredAt   int64    `json:"t"`              // Unix milliseconds
}

// NewTransitionEventPayload builds a payload for a completed transition.
func NewTransitionEventPayload(op string, actor, counterparty identity.Identity, amount uint64, tags []string, occurredAt time.Time) TransitionEventPayload {
	payload := TransitionEventPayload{
		Op:         op,
		Actor:      actor.String(),
		Amount:     strconv.FormatUint(amount, 10),
		Tags:       tags,
		OccurredAt: occurredAt.UnixMilli(),
	}
	if !counterparty.IsZero() {
		payload.Counterparty = counterparty.String()
	}
	return payload
}

// Publisher enqueues transition events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds a transition event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event TransitionEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget); the durable trail
// is best-effort and never blocks a transition.
func (p *Publisher) PublishAsync(event TransitionEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish transition event",
				"op", event.Op,
				"actor", event.Actor,
				"error", err,
			)
			p.metrics.IncAuditEventPublished("dropped")
			return
		}

		p.logger.Debug("transition event published",
			"op", event.Op,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEventPublished("success")
	}()
}

// toModel converts a validated payload into the persistence model.
func (p TransitionEventPayload) toModel(id, eventID string) (*model.TransitionEvent, error) {
	amount, err := strconv.ParseUint(p.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}

	return &model.TransitionEvent{
		ID:           id,
		EventID:      eventID,
		Op:           p.Op,
		Actor:        p.Actor,
		Counterparty: p.Counterparty,
		Amount:       amount,
		Tags:         p.Tags,
		OccurredAt:   time.UnixMilli(p.OccurredAt),
	}, nil
}
