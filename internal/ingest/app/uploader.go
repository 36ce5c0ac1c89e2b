package app

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/database"
	"video_ingest_service/pkg/logger"
	"video_ingest_service/pkg/metrics"

	"go.uber.org/zap"
)

// PartUploader transfers one physical part under a deterministic id
type PartUploader interface {
	Upload(ctx context.Context, target domain.StoreTarget, filePath, publicID string) (domain.PartMetadata, error)
}

// Uploader bounded-retry uploader on top of an ObjectStore
type Uploader struct {
	store   database.ObjectStore
	policy  domain.RetryPolicy
	metrics *metrics.Metrics
}

// NewUploader create Uploader
func NewUploader(store database.ObjectStore, policy domain.RetryPolicy, m *metrics.Metrics) *Uploader {
	return &Uploader{store: store, policy: policy, metrics: m}
}

// Upload puts filePath under publicID with overwrite disabled. At most
// MaxRetries+1 tries are made, and only timeouts / 503 / 504 are retried.
// The failure is a *domain.UploadError.
func (u *Uploader) Upload(ctx context.Context, target domain.StoreTarget, filePath, publicID string) (domain.PartMetadata, error) {
	attempt := domain.UploadAttempt{FilePath: filePath, PublicID: publicID}
	opts := domain.UploadOptions{ContentType: contentTypeOf(filePath), Overwrite: false}

	// 已送出的請求不因 caller 取消而中斷；ctx 只決定是否再排下一次重試
	storeCtx := context.WithoutCancel(ctx)

	var obj domain.StoredObject
	adopted := false
	attempts, err := retryStore(ctx, u.policy, func(n int) error {
		attempt.AttemptNumber = n
		o, err := u.store.Upload(storeCtx, target, filePath, publicID, opts)
		if err != nil && n > 1 && isConflict(err) {
			// 上一次嘗試可能其實已寫入成功，只是回應逾時
			o, err = u.adopt(storeCtx, target, filePath, publicID, err)
			adopted = err == nil
		}
		attempt.LastError = err
		if err == nil {
			obj = o
		}
		return err
	}, func(n int, delay time.Duration, err error) {
		u.metrics.IncUploadRetries()
		logger.Log.Warn("upload failed, retrying",
			zap.String("public_id", publicID),
			zap.Int("attempt", n),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	if err != nil {
		u.metrics.PartUploaded("failed")
		logger.Log.Error("upload failed",
			zap.String("public_id", attempt.PublicID),
			zap.Int("attempts", attempts),
			zap.Error(attempt.LastError),
		)
		return domain.PartMetadata{}, &domain.UploadError{
			PublicID:  publicID,
			Attempts:  attempts,
			Retryable: IsRetryable(err),
			Err:       err,
		}
	}

	if adopted {
		u.metrics.PartUploaded("adopted")
	} else {
		u.metrics.PartUploaded("ok")
	}
	if obj.PublicID == "" {
		obj.PublicID = publicID
	}
	return toPartMetadata(obj, target, filePath), nil
}

// adopt accepts an existing object under our own id when it has the same
// size as the local file; anything else keeps the conflict.
func (u *Uploader) adopt(ctx context.Context, target domain.StoreTarget, filePath, publicID string, conflict error) (domain.StoredObject, error) {
	fi, err := statFile(filePath)
	if err != nil {
		return domain.StoredObject{}, conflict
	}
	existing, err := u.store.StatByID(ctx, target, publicID)
	if err != nil || existing.Bytes != fi.Size() {
		return domain.StoredObject{}, conflict
	}
	logger.Log.Info("adopt object written by an earlier attempt", zap.String("public_id", publicID))
	return existing, nil
}

// toPartMetadata store result -> fixed PartMetadata shape. Media fields the
// store does not report stay zero and are filled from the probe.
func toPartMetadata(obj domain.StoredObject, target domain.StoreTarget, filePath string) domain.PartMetadata {
	meta := domain.PartMetadata{
		PublicID:         obj.PublicID,
		RemoteURL:        obj.URL,
		ByteSize:         obj.Bytes,
		StorageNamespace: target.Namespace,
		Format:           formatOf(filePath),
	}
	if obj.DurationSeconds != nil {
		meta.DurationSeconds = *obj.DurationSeconds
	}
	if obj.Width != nil {
		meta.Width = *obj.Width
	}
	if obj.Height != nil {
		meta.Height = *obj.Height
	}
	return meta
}

func isConflict(err error) bool {
	var se *domain.StoreError
	return errors.As(err, &se) && se.HTTPCode == http.StatusConflict
}

func contentTypeOf(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	return "video/mp4"
}

func formatOf(filePath string) string {
	ext := filepath.Ext(filePath)
	if len(ext) > 1 {
		return ext[1:]
	}
	return ""
}
