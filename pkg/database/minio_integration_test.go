//go:build integration

package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/logger"
	testtool "video_ingest_service/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMinIO(t *testing.T) *MinIOClient {
	t.Helper()
	logger.SetNewNop()
	ctx := context.Background()

	// **啟動 MinIO**
	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		Cmd:          []string{"server", "/data"},
		Env:          map[string]string{"MINIO_ROOT_USER": "minioadmin", "MINIO_ROOT_PASSWORD": "minioadmin"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client, err := NewMinIOConnection(MinIOConnection{
		Endpoint:      fmt.Sprintf("%s:%s", host, port),
		User:          "minioadmin",
		Password:      "minioadmin",
		BucketName:    "video-bucket",
		RetryCount:    5,
		RetryInterval: 1,
	})
	require.NoError(t, err)
	return client
}

func writePart(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMinIOStore(t *testing.T) {
	store := setupMinIO(t)
	ctx := context.Background()
	target := domain.StoreTarget{Bucket: "video-bucket", Namespace: "videos"}
	dir := t.TempDir()

	// 上傳三段
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("trip-abcd1234-part-%03d", i)
		obj, err := store.Upload(ctx, target, writePart(t, dir, id+".mp4", strings.Repeat("x", i)), id, domain.UploadOptions{ContentType: "video/mp4"})
		require.NoError(t, err)
		assert.Equal(t, int64(i), obj.Bytes)
		assert.Contains(t, obj.URL, "/video-bucket/videos/"+id)
	}

	// overwrite=false 時同一個 id 再傳一次要回 409
	_, err := store.Upload(ctx, target, writePart(t, dir, "again.mp4", "y"), "trip-abcd1234-part-001", domain.UploadOptions{})
	var se *domain.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.HTTPCode)

	stat, err := store.StatByID(ctx, target, "trip-abcd1234-part-002")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stat.Bytes)

	signed, err := store.PresignGetURL(ctx, target, "trip-abcd1234-part-003", time.Minute)
	require.NoError(t, err)
	resp, err := http.Get(signed)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "xxx", string(body))

	lookalike := "trip-abcd1234-part-001-ffff0000-part-001"
	_, err = store.Upload(ctx, target, writePart(t, dir, "lookalike.mp4", "zz"), lookalike, domain.UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, store.DeleteByPrefix(ctx, target, "trip-abcd1234-part-"))
	_, err = store.StatByID(ctx, target, "trip-abcd1234-part-001")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.HTTPCode)
	// 只是前綴相同的物件不能被刪
	_, err = store.StatByID(ctx, target, lookalike)
	assert.NoError(t, err)

	// 不存在的物件視為已刪除
	assert.NoError(t, store.DeleteByID(ctx, target, "never-uploaded"))
	assert.NoError(t, store.DeleteByPrefix(ctx, target, "nothing-here-part-"))
}

func TestRedisRepository(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	// **啟動 Redis**
	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client, err := NewRedisClient(RedisConnection{Addr: fmt.Sprintf("%s:%s", host, port)})
	require.NoError(t, err)
	defer client.Close()

	repo := NewRedisRepository[domain.PlaybackManifest](client)
	_, err = repo.Get(ctx, "playback:u1:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	manifest := domain.PlaybackManifest{VideoID: 1, TotalDurationSeconds: 92, Parts: []domain.PlaybackPart{{Index: 0}, {Index: 1, OffsetSeconds: 46}}}
	require.NoError(t, repo.Set(ctx, "playback:u1:1", manifest, time.Minute))

	got, err := repo.Get(ctx, "playback:u1:1")
	require.NoError(t, err)
	assert.Equal(t, manifest.Parts, got.Parts)

	require.NoError(t, repo.Del(ctx, "playback:u1:1"))
	_, err = repo.Get(ctx, "playback:u1:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
