package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"perfbot/internal/logger"
	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/IBM/sarama"
)

// StatusApplier applies an operational status event to an order
type StatusApplier interface {
	ApplyStatusEvent(ctx context.Context, ev model.StatusEvent) error
}

// StatusConsumer reads order status events from a consumer group. Malformed
// or inapplicable events are logged and skipped.
type StatusConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	applier StatusApplier
	log     *logger.Logger

	retryBackoff time.Duration
}

// NewStatusConsumer joins groupID on brokers
func NewStatusConsumer(brokers []string, groupID, topic string, applier StatusApplier, log *logger.Logger) (*StatusConsumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	return &StatusConsumer{
		group:   group,
		topic:   topic,
		applier: applier,
		log:     log.With("component", "StatusConsumer", "topic", topic),

		retryBackoff: time.Second,
	}, nil
}

// Run consumes until ctx is cancelled
func (c *StatusConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Warn("Kafka consumer error", "error", err)
		}
	}()

	c.log.Info("Status consumer started")
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %s: %w", c.topic, err)
		}
		if ctx.Err() != nil {
			c.log.Info("Status consumer stopped")
			return nil
		}
	}
}

// Close leaves the group
func (c *StatusConsumer) Close() error {
	return c.group.Close()
}

// Setup is part of sarama.ConsumerGroupHandler
func (c *StatusConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is part of sarama.ConsumerGroupHandler
func (c *StatusConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim is part of sarama.ConsumerGroupHandler. A message whose event
// could not be applied for a transient reason is left unmarked and the claim
// ends, so the group redelivers it from the last committed offset.
func (c *StatusConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.handleMessage(sess.Context(), msg); err != nil {
				c.log.Warn("Status event will be retried",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				select {
				case <-time.After(c.retryBackoff):
				case <-sess.Context().Done():
				}
				return err
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

// handleMessage decodes and applies one event. Malformed events, unknown
// orders and illegal transitions are logged and skipped; any other failure is
// returned and the message must not be marked.
func (c *StatusConsumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := DecodeStatusEvent(msg.Value)
	if err != nil {
		c.log.Warn("Skipping malformed status event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return nil
	}

	err = c.applier.ApplyStatusEvent(ctx, ev)
	switch {
	case err == nil:
		c.log.Debug("Status event applied", "order_id", ev.OrderID, "status", ev.Status)
		return nil
	case errors.Is(err, service.ErrIllegalTransition), errors.Is(err, service.ErrOrderNotFound):
		c.log.Warn("Status event not applied",
			"order_id", ev.OrderID,
			"status", ev.Status,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("apply status event for order %s: %w", ev.OrderID, err)
	}
}

// DecodeStatusEvent parses and checks a status event payload
func DecodeStatusEvent(data []byte) (model.StatusEvent, error) {
	var ev model.StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("invalid json: %w", err)
	}
	if ev.OrderID == "" {
		return ev, errors.New("missing order_id")
	}
	if ev.Status == "" {
		return ev, errors.New("missing status")
	}
	return ev, nil
}
