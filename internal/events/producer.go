package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perfbot/internal/model"

	"github.com/IBM/sarama"
)

// OrderEventProducer publishes order.created events to Kafka
type OrderEventProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig returns the sarama settings shared by the producer and tests
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true // required by SyncProducer
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second
	return cfg
}

// NewOrderEventProducer connects a sync producer to brokers
func NewOrderEventProducer(brokers []string, topic string) (*OrderEventProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewOrderEventProducerFromClient(producer, topic), nil
}

// NewOrderEventProducerFromClient wraps an existing producer
func NewOrderEventProducerFromClient(producer sarama.SyncProducer, topic string) *OrderEventProducer {
	return &OrderEventProducer{producer: producer, topic: topic}
}

// PublishOrderCreated sends the event keyed by order ID, so all events of one
// order land on the same partition
func (p *OrderEventProducer) PublishOrderCreated(ctx context.Context, event model.OrderCreatedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("order.created")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send order event to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *OrderEventProducer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
