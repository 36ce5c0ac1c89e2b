package app

import (
	"context"
	"encoding/json"
	"strconv"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// EventPublisher emits video lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.VideoEvent) error
}

// RabbitPublisher publishes events to a durable queue on the default exchange
type RabbitPublisher struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewRabbitPublisher create RabbitPublisher
func NewRabbitPublisher(rabbit database.RabbitRepo, queue string) *RabbitPublisher {
	return &RabbitPublisher{rabbit: rabbit, queue: queue}
}

// Publish .
func (p *RabbitPublisher) Publish(_ context.Context, event domain.VideoEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.rabbit.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// KafkaPublisher keyed by video id so events of one video stay ordered
type KafkaPublisher struct {
	writer database.KafkaWriter
}

// NewKafkaPublisher create KafkaPublisher
func NewKafkaPublisher(writer database.KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish .
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.VideoEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.VideoID), 10)),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

// NoopPublisher events.driver = none
type NoopPublisher struct{}

// Publish .
func (NoopPublisher) Publish(context.Context, domain.VideoEvent) error { return nil }

// ReconcileQueue hands partial deletes to the retry worker
type ReconcileQueue interface {
	Enqueue(ctx context.Context, job domain.ReconcileJob) error
}

// RabbitReconcileQueue ReconcileQueue on RabbitMQ
type RabbitReconcileQueue struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewRabbitReconcileQueue create RabbitReconcileQueue
func NewRabbitReconcileQueue(rabbit database.RabbitRepo, queue string) *RabbitReconcileQueue {
	return &RabbitReconcileQueue{rabbit: rabbit, queue: queue}
}

// Enqueue .
func (q *RabbitReconcileQueue) Enqueue(_ context.Context, job domain.ReconcileJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rabbit.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
