package config

import (
	"time"

	"video_ingest_service/internal/ingest/domain"
)

const mb = int64(1024 * 1024)

// Ingest definition ingest_service YAML structure
type Ingest struct {
	Port       string `mapstructure:"port"`
	IP         string `mapstructure:"ip"`
	StagingDir string `mapstructure:"staging_dir"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	// PresignTTL 播放清單中 presigned URL 的有效秒數
	PresignTTL int `mapstructure:"presign_ttl"`
	// BodyLimitMB 上傳請求大小上限
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
	PprofAddr   string `mapstructure:"pprof_addr"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	MinIO      MinIOConfig    `mapstructure:"minio"`
	Redis      RedisConfig    `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	KafKa      KafkaConfig    `mapstructure:"kafka"`
	Events     EventsConfig   `mapstructure:"events"`
	Mongo      MongoConfig    `mapstructure:"mongo"`

	Limits   LimitsConfig   `mapstructure:"limits"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Media    MediaConfig    `mapstructure:"media"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	BucketName string `mapstructure:"bucket_name"`
	Namespace  string `mapstructure:"namespace"`
	UseSSL     bool   `mapstructure:"use_ssl"`

	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	RedisDB  int    `mapstructure:"redis_db"`
	CacheTTL int    `mapstructure:"cache_ttl"`
}

// MongoConfig ingest run journal
type MongoConfig struct {
	URI           string `mapstructure:"uri"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	IP             string `mapstructure:"ip"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Queue          string `mapstructure:"queue"`
	ReconcileQueue string `mapstructure:"reconcile_queue"`
	RetryInterval  int    `mapstructure:"retry_interval"`
	RetryCount     int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// EventsConfig chooses the event sink: "rabbitmq", "kafka" or "none".
type EventsConfig struct {
	Driver string `mapstructure:"driver"`
}

// LimitsConfig sizes in MB
type LimitsConfig struct {
	StoreLimitMB int64 `mapstructure:"store_limit_mb"`
	TargetPartMB int64 `mapstructure:"target_part_mb"`
	MinPartMB    int64 `mapstructure:"min_part_mb"`
	MaxParts     int   `mapstructure:"max_parts"`
}

// RetryConfig delays in milliseconds
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries"`
	BaseDelayMS int `mapstructure:"base_delay_ms"`
	StepMS      int `mapstructure:"step_ms"`
}

// MediaConfig ffmpeg / ffprobe binaries
type MediaConfig struct {
	FFmpegBin  string `mapstructure:"ffmpeg_bin"`
	FFprobeBin string `mapstructure:"ffprobe_bin"`
}

// PipelineConfig ingest pipeline switches
type PipelineConfig struct {
	RollbackOnFailure *bool `mapstructure:"rollback_on_failure"`
	ReconcileAttempts int   `mapstructure:"reconcile_attempts"`
}

// ToLimits converts the MB based YAML values, falling back to domain defaults.
func (l LimitsConfig) ToLimits() domain.Limits {
	limits := domain.DefaultLimits()
	if l.StoreLimitMB > 0 {
		limits.StoreLimitBytes = l.StoreLimitMB * mb
	}
	if l.TargetPartMB > 0 {
		limits.TargetPartBytes = l.TargetPartMB * mb
	}
	if l.MinPartMB > 0 {
		limits.MinPartBytes = l.MinPartMB * mb
	}
	if l.MaxParts > 0 {
		limits.MaxParts = l.MaxParts
	}
	return limits
}

// ToRetryPolicy converts the YAML retry block, falling back to domain defaults.
func (r RetryConfig) ToRetryPolicy() domain.RetryPolicy {
	policy := domain.DefaultRetryPolicy()
	if r.MaxRetries > 0 {
		policy.MaxRetries = r.MaxRetries
	}
	if r.BaseDelayMS > 0 {
		policy.BaseDelay = time.Duration(r.BaseDelayMS) * time.Millisecond
	}
	if r.StepMS > 0 {
		policy.Step = time.Duration(r.StepMS) * time.Millisecond
	}
	return policy
}

// Rollback defaults to true when unset.
func (p PipelineConfig) Rollback() bool {
	if p.RollbackOnFailure == nil {
		return true
	}
	return *p.RollbackOnFailure
}
