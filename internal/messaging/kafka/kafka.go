package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"farmmarket/internal/messaging"

	"github.com/cenkalti/backoff/v4"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the part of a consumer group reader Consume needs
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkaGo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type kafkaBroker struct {
	brokers []string
	logger  *zap.Logger

	mu      sync.Mutex
	writers map[string]*kafkaGo.Writer

	newReader func(topic, groupID string) messageReader
	retry     func() backoff.BackOff
}

// Broker publishes and consumes through Kafka. Writers are created per topic and reused.
type Broker interface {
	messaging.Publisher
	messaging.Subscriber
	Close() error
}

// NewKafkaBroker creates a new Kafka publisher and subscriber.
func NewKafkaBroker(brokers []string, logger *zap.Logger) Broker {
	k := &kafkaBroker{brokers: brokers, logger: logger, writers: make(map[string]*kafkaGo.Writer)}
	k.newReader = func(topic, groupID string) messageReader {
		return kafkaGo.NewReader(kafkaGo.ReaderConfig{
			Brokers: k.brokers,
			Topic:   topic,
			GroupID: groupID,
		})
	}
	k.retry = func() backoff.BackOff {
		return backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(200*time.Millisecond),
			backoff.WithMaxInterval(30*time.Second),
			backoff.WithMaxElapsedTime(0),
		)
	}
	return k
}

func (k *kafkaBroker) writer(topic string) *kafkaGo.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()
	w, ok := k.writers[topic]
	if !ok {
		w = &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(k.brokers...),
			Topic:                  topic,
			Balancer:               &kafkaGo.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
		k.writers[topic] = w
	}
	return w
}

func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return k.writer(topic).WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

// Consume commits a message only after its handler succeeds. Handlers report unrecoverable
// input as success, so a returned error is retried on the same message until it succeeds or
// ctx ends, and an uncommitted message is redelivered to the group after a restart.
func (k *kafkaBroker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	reader := k.newReader(topic, groupID)
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				k.logger.Info("Consumer shutting down", zap.String("topic", topic))
				return
			}
			k.logger.Error("Error reading message", zap.String("topic", topic), zap.Error(err))
			continue
		}

		if err := k.handle(ctx, topic, msg, handler); err != nil {
			k.logger.Info("Consumer stopped before the message was handled",
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			k.logger.Error("Error committing message",
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (k *kafkaBroker) handle(ctx context.Context, topic string, msg kafkaGo.Message, handler func(ctx context.Context, payload []byte) error) error {
	operation := func() error {
		return handler(ctx, msg.Value)
	}
	notify := func(err error, wait time.Duration) {
		k.logger.Warn("Error handling message, retrying",
			zap.String("topic", topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(k.retry(), ctx), notify)
}

func (k *kafkaBroker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var firstErr error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(k.writers, topic)
	}
	return firstErr
}
