package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
port: "8080"
jwt_secret: "${INGEST_TEST_SECRET}"
presign_ttl: 600
minio:
  bucket_name: "video-bucket"
  namespace: "videos"
  retry_interval: 2
  retry_count: 3
events:
  driver: "kafka"
kafka:
  brokers: ["broker-1:9092", "broker-2:9092"]
  topic: "video_events"
limits:
  store_limit_mb: 200
  max_parts: 10
retry:
  max_retries: 5
  step_ms: 250
pipeline:
  rollback_on_failure: false
mongo:
  uri: "mongodb://journal:27017"
  database: "ingest"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest_test.yaml"), []byte(sampleYAML), 0644))
	t.Setenv("INGEST_TEST_SECRET", "s3cret")

	cfg, err := LoadConfig[Ingest]("ingest_test", dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 600, cfg.PresignTTL)
	assert.Equal(t, "videos", cfg.MinIO.Namespace)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafKa.Brokers)
	assert.False(t, cfg.Pipeline.Rollback())
	assert.Equal(t, "mongodb://journal:27017", cfg.Mongo.URI)
	assert.Equal(t, "ingest", cfg.Mongo.Database)

	limits := cfg.Limits.ToLimits()
	assert.Equal(t, 200*domain.MB, limits.StoreLimitBytes)
	assert.Equal(t, 10, limits.MaxParts)
	// 沒設定的欄位用預設值
	assert.Equal(t, domain.DefaultLimits().TargetPartBytes, limits.TargetPartBytes)

	policy := cfg.Retry.ToRetryPolicy()
	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, time.Second, policy.BaseDelay)
	assert.Equal(t, 250*time.Millisecond, policy.Step)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig[Ingest]("does_not_exist", t.TempDir())
	assert.Error(t, err)
}

func TestPipelineRollbackDefault(t *testing.T) {
	assert.True(t, PipelineConfig{}.Rollback())
}
