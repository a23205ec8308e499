package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaNotifier publishes every event as a JSON message keyed by event type.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

type envelope struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// NewKafkaConfig returns the producer configuration used by NewKafkaNotifier.
func NewKafkaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func NewKafkaNotifier(brokers []string, topic string, cfg *sarama.Config, logger *zap.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier: no brokers configured")
	}
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: failed to create producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, topic, logger)
}

// NewKafkaNotifierWithProducer wraps an existing producer. The notifier owns it afterwards.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka notifier: topic required")
	}
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(envelope{Type: e.Type(), Event: e})
		if err != nil {
			return fmt.Errorf("kafka notifier: failed to encode %s: %w", e.Type(), err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(e.Type()),
			Value: sarama.ByteEncoder(value),
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := k.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka notifier: failed to publish %d events: %w", len(msgs), err)
	}
	k.logger.Debug("published events to kafka", zap.String("topic", k.topic), zap.Int("count", len(msgs)))
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
