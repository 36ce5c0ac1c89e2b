package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter the part of *kafka.Writer the publishers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriterWithRetry 建立 Kafka Writer，並以 metadata 查詢確認 broker 可連線
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.Dial("tcp", k.Brokers[0])
		if err == nil {
			_, err = conn.ReadPartitions(k.Topic)
			conn.Close()
		}
		if err == nil {
			log.Printf("Kafka Writer 建立成功 (嘗試 %d 次)", attempt)
			return &kafka.Writer{
				Addr:                   kafka.TCP(k.Brokers...),
				Topic:                  k.Topic,
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
			}, nil
		}

		log.Printf("Kafka 連線失敗 (嘗試 %d/%d): %v", attempt, k.RetryCount, err)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法建立 Kafka Writer，經過 %d 次嘗試: %w", k.RetryCount, err)
}
