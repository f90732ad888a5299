// Package events публикует события заказов из outbox во внешний брокер.
package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// Publisher отправляет события заказов.
type Publisher interface {
	Publish(ctx context.Context, events []model.OrderEvent) error
	Close() error
}

// KafkaPublisher публикует события в топик Kafka. Ключ сообщения - заказ,
// поэтому события одного заказа попадают в одну партицию.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создаёт издателя для указанных брокеров и топика.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish отправляет события одним пакетом.
func (p *KafkaPublisher) Publish(ctx context.Context, events []model.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, Messages(events)...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	return nil
}

// Close закрывает соединения с брокерами.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages преобразует события outbox в сообщения Kafka.
func Messages(events []model.OrderEvent) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(fmt.Sprintf("order-%d", e.OrderID)),
			Value: e.Payload,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(e.ID)},
				{Key: "event-type", Value: []byte(e.Type)},
			},
			Time: e.CreatedAt,
		})
	}
	return msgs
}

// LogPublisher пишет события в журнал. Используется, когда брокер не настроен.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher создаёт издателя, пишущего в журнал.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish пишет каждое событие в журнал.
func (p *LogPublisher) Publish(_ context.Context, events []model.OrderEvent) error {
	for _, e := range events {
		p.logger.Info("order event",
			zap.String("id", e.ID),
			zap.String("type", e.Type),
			zap.Int64("orderID", e.OrderID),
			zap.ByteString("payload", e.Payload),
		)
	}
	return nil
}

// Close ничего не делает.
func (p *LogPublisher) Close() error { return nil }
