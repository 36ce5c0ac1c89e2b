package database

import (
	"fmt"
	"time"

	"video_ingest_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitQueues 影片事件與刪除重試共用同一條 RabbitMQ 連線
type RabbitQueues struct {
	// Events video.ingested / video.deleted / video.delete_failed
	Events string
	// Reconcile ids a partial delete could not remove yet
	Reconcile string
}

// Names configured queue names, empty ones skipped
func (q RabbitQueues) Names() []string {
	var names []string
	for _, n := range []string{q.Events, q.Reconcile} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// RabbitRepo publishes ingest events and reconcile jobs
type RabbitRepo interface {
	GetRabbit() *amqp.Channel
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitRepo struct {
	channel *amqp.Channel
}

// NewRabbitRepository create a RabbitRepository
func NewRabbitRepository(ch *amqp.Channel) RabbitRepo {
	return &rabbitRepo{channel: ch}
}

// QueueDeclarer the part of *amqp.Channel DeclareQueues needs
type QueueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// ConnectRabbitMQWithRetry 連線到 RabbitMQ，失敗時依 RetryInterval 重試
func ConnectRabbitMQWithRetry(d Connection, queues RabbitQueues) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; attempt <= d.RetryCount; attempt++ {
		conn, err = amqp.Dial(d.ConnectStr)
		if err == nil {
			logger.Log.Info("rabbitmq connected", zap.Strings("queues", queues.Names()), zap.Int("attempt", attempt))
			return conn, nil
		}

		logger.Log.Warn("rabbitmq connect failed, retrying...",
			zap.Strings("queues", queues.Names()),
			zap.Int("attempt", attempt),
			zap.Int("max", d.RetryCount),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法連線 RabbitMQ (queues %v)，經過 %d 次嘗試: %w", queues.Names(), d.RetryCount, err)
}

// GetRabbitMQChannelWithRetry 從已有連線取得 events / reconcile 共用的 channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, queues RabbitQueues, maxRetries int, baseDelay time.Duration) (*amqp.Channel, error) {
	var ch *amqp.Channel
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ch, err = conn.Channel()
		if err == nil {
			return ch, nil
		}

		logger.Log.Warn("open rabbitmq channel failed, retrying...",
			zap.Strings("queues", queues.Names()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(baseDelay * time.Second)
	}

	return nil, fmt.Errorf("無法取得 RabbitMQ Channel (queues %v)，經過 %d 次嘗試: %w", queues.Names(), maxRetries, err)
}

// DeclareQueues durable declaration of every configured queue; survives a broker restart
func DeclareQueues(ch QueueDeclarer, queues RabbitQueues) error {
	for _, name := range queues.Names() {
		if _, err := ch.QueueDeclare(
			name,  // queue name
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
		logger.Log.Debug("queue declared", zap.String("queue", name))
	}
	return nil
}

func (r *rabbitRepo) GetRabbit() *amqp.Channel {
	return r.channel
}

// Publish key is the queue name on the default exchange
func (r *rabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if err := r.channel.Publish(exchange, key, mandatory, immediate, msg); err != nil {
		return fmt.Errorf("publish to queue %s: %w", key, err)
	}
	return nil
}
