package database

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Connection definition sql setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// MinIOConnection definition minio
type MinIOConnection struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis; SentinelAddrs wins over Addr when set
type RedisConnection struct {
	Addr          string
	MasterName    string
	SentinelAddrs []string
	DB            int
}

// MongoDB client and the database the repositories use
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}
