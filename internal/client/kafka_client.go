package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"resource-auth-service/internal/config"
	"resource-auth-service/internal/models"
	"resource-auth-service/internal/util"
)

// AuthEventProducer publishes the internal audit trail of authentication
// outcomes to Kafka. Publishing is best-effort: a broker outage must never
// fail an authentication request.
type AuthEventProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewAuthEventProducer(cfg *config.Config) (*AuthEventProducer, error) {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Topic:        kafkaConfig.Topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				util.Error("failed to write auth events to kafka",
					util.ErrorField(err),
					util.Int("message_count", len(messages)),
				)
			}
		},
	}

	util.Info("Kafka auth event producer initialized",
		util.Any("brokers", kafkaConfig.Brokers),
		util.String("topic", kafkaConfig.Topic),
	)

	return &AuthEventProducer{writer: writer, topic: kafkaConfig.Topic}, nil
}

// Publish serializes the event and hands it to the async writer. Messages are
// keyed by resource ID so per-resource ordering is preserved per partition.
func (p *AuthEventProducer) Publish(ctx context.Context, event models.AuthEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(event.ResourceID)),
		Value: payload,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

func (p *AuthEventProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
