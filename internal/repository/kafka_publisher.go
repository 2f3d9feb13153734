package repository

import (
	"context"

	"WattWise/internal/domain/models"
	domrepo "WattWise/internal/domain/repository"
	pkgkafka "WattWise/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Events are keyed by city so
// a city's runs stay ordered within one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishCompleted(ctx context.Context, ev models.ForecastCompleted) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.City), ev)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
