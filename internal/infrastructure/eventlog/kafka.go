package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// retryDelay spaces handler retries on a record that keeps failing.
const retryDelay = time.Second

// KafkaLog implements Log on top of Kafka. A single writer serves every
// topic; the Hash balancer keeps all records for one key in one
// partition. Consumers fetch and commit explicitly so a handler error
// holds the offset back and forces redelivery.
type KafkaLog struct {
	brokers []string
	writer  *kafka.Writer
	logger  *zap.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaLog(brokers []string, logger *zap.Logger) *KafkaLog {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaLog{
		brokers: brokers,
		writer:  writer,
		logger:  logger,
	}
}

func (l *KafkaLog) Produce(ctx context.Context, topic, key string, payload []byte) error {
	return l.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
}

func (l *KafkaLog) Subscribe(ctx context.Context, topic, groupID string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     l.brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})
	l.mu.Lock()
	l.readers = append(l.readers, reader)
	l.mu.Unlock()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("fetch message failed",
				zap.String("topic", topic), zap.Error(err))
			continue
		}

		// The record must not be skipped: fetching past an uncommitted
		// failure and committing a later offset would advance the
		// group's watermark over it and lose it for good.
		err = handleWithRetry(ctx, handler, msg.Key, msg.Value, retryDelay, func(handlerErr error) {
			l.logger.Warn("handler failed, retrying record in place",
				zap.String("topic", topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(handlerErr))
		})
		if err != nil {
			return err
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("commit failed",
				zap.String("topic", topic), zap.Error(err))
		}
	}
}

// handleWithRetry invokes the handler until it succeeds, waiting delay
// between attempts. It returns only the context error, once ctx is
// cancelled.
func handleWithRetry(ctx context.Context, handler Handler, key, value []byte, delay time.Duration, onError func(error)) error {
	for {
		err := handler(ctx, key, value)
		if err == nil {
			return nil
		}
		onError(err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (l *KafkaLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.readers {
		_ = r.Close()
	}
	return l.writer.Close()
}
