package repository

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/domain/repository"
	pkgkafka "RegimeLab/pkg/kafka"
)

// KafkaPublisher implements EventPublisher for Kafka.
// Each detection run emits one event per label switch, keyed by symbol so
// consumers see a symbol's regime history in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishChanges(ctx context.Context, d *models.Detection) error {
	if d == nil {
		return fmt.Errorf("detection is nil")
	}
	changes := d.LabelChanges()
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(changes))
	for i, ch := range changes {
		msgs[i] = pkgkafka.Message{
			Key: []byte(d.Symbol),
			Value: map[string]interface{}{
				"symbol":    d.Symbol,
				"date":      ch.Date.UTC().Format("2006-01-02"),
				"from":      ch.From,
				"to":        ch.To,
				"model":     d.Model,
				"fitted_at": d.FittedAt.UTC().Format(time.RFC3339),
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
