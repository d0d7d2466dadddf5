package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
)

const publishTimeout = 5 * time.Second

// KafkaSink publishes events to a Kafka topic. Delivery failures are logged
// and swallowed so the calling operation is never held hostage by the broker.
type KafkaSink struct {
	writer *kafka.Writer
	logger logging.Logger
}

func NewKafkaSink(brokers []string, topic string, logger logging.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaSink{writer: w, logger: logger.With("module", "kafka_sink")}
}

func (s *KafkaSink) Publish(ctx context.Context, event *Event) error {
	payload, err := event.ToJSON()
	if err != nil {
		s.logger.Error(ctx, "event marshal failed", "type", event.Type, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ID),
		Value: payload,
	})
	if err != nil {
		s.logger.Warn(ctx, "event publish failed", "type", event.Type, "error", err)
		return err
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
