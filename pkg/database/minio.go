package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"video_ingest_service/internal/ingest/domain"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore 影片分段的遠端儲存；所有呼叫都明確帶入 StoreTarget
type ObjectStore interface {
	Upload(ctx context.Context, target domain.StoreTarget, filePath, publicID string, opts domain.UploadOptions) (domain.StoredObject, error)
	DeleteByID(ctx context.Context, target domain.StoreTarget, publicID string) error
	DeleteByPrefix(ctx context.Context, target domain.StoreTarget, prefix string) error
	StatByID(ctx context.Context, target domain.StoreTarget, publicID string) (domain.StoredObject, error)
	PresignGetURL(ctx context.Context, target domain.StoreTarget, publicID string, expiry time.Duration) (string, error)
}

// MinIOClient definition minio client
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
	Endpoint   string
	UseSSL     bool
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	for i := 1; i <= d.RetryCount; i++ {
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		if err == nil {
			log.Printf("minIO[%s] 連線成功 (嘗試 %d 次)", d.Endpoint, i)
			return mc, nil
		}

		log.Printf("minIO[%s] 連線失敗 (嘗試 %d/%d): %v", d.Endpoint, i, d.RetryCount, err)
		time.Sleep(d.RetryInterval * time.Second)
	}

	return mc, err
}

// NewMinioClient create a new minio client and make sure the bucket exists
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 失敗: %w", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("檢查 bucket [%s] 失敗: %w", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("建立 bucket [%s] 失敗: %w", bucketName, err)
		}
		log.Printf("Bucket [%s] 建立成功", bucketName)
	}

	return &MinIOClient{
		Client:     minioClient,
		BucketName: bucketName,
		Endpoint:   endpoint,
		UseSSL:     useSSL,
	}, nil
}

// Upload puts filePath under the deterministic publicID. With Overwrite=false
// an existing object is reported as a 409 StoreError.
func (m *MinIOClient) Upload(ctx context.Context, target domain.StoreTarget, filePath, publicID string, opts domain.UploadOptions) (domain.StoredObject, error) {
	bucket := m.bucket(target)
	key := ObjectKey(target.Namespace, publicID)

	if !opts.Overwrite {
		_, err := m.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return domain.StoredObject{}, &domain.StoreError{Message: fmt.Sprintf("object %s already exists", key), HTTPCode: http.StatusConflict}
		}
		if se := ToStoreError(err); se.HTTPCode != http.StatusNotFound {
			return domain.StoredObject{}, se
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.Client.FPutObject(ctx, bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return domain.StoredObject{}, ToStoreError(err)
	}

	return domain.StoredObject{
		PublicID: publicID,
		URL:      m.objectURL(bucket, key),
		Bytes:    info.Size,
	}, nil
}

// DeleteByID removes one object; a missing object counts as deleted.
func (m *MinIOClient) DeleteByID(ctx context.Context, target domain.StoreTarget, publicID string) error {
	err := m.Client.RemoveObject(ctx, m.bucket(target), ObjectKey(target.Namespace, publicID), minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	se := ToStoreError(err)
	if se.HTTPCode == http.StatusNotFound {
		return nil
	}
	return se
}

// DeleteByPrefix removes every "<prefix>NNN" part object. Keys that only
// share the prefix, like a later upload named "<prefix>001-<token>", are
// left alone. It only succeeds when listing and every single removal succeed.
func (m *MinIOClient) DeleteByPrefix(ctx context.Context, target domain.StoreTarget, prefix string) error {
	bucket := m.bucket(target)
	keyPrefix := ObjectKey(target.Namespace, prefix)

	var listed []string
	for obj := range m.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    keyPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return ToStoreError(obj.Err)
		}
		listed = append(listed, obj.Key)
	}
	keys := PartKeys(listed, keyPrefix)
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objectsCh <- minio.ObjectInfo{Key: k}
	}
	close(objectsCh)

	var failed []string
	var lastErr error
	for rErr := range m.Client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err == nil {
			continue
		}
		if se := ToStoreError(rErr.Err); se.HTTPCode == http.StatusNotFound {
			continue
		}
		failed = append(failed, rErr.ObjectName)
		lastErr = rErr.Err
	}
	if len(failed) > 0 {
		se := ToStoreError(lastErr)
		se.Message = fmt.Sprintf("prefix %s: %d object(s) not removed [%s]: %s", prefix, len(failed), strings.Join(failed, ", "), se.Message)
		return se
	}
	return nil
}

// StatByID size and url of an existing object
func (m *MinIOClient) StatByID(ctx context.Context, target domain.StoreTarget, publicID string) (domain.StoredObject, error) {
	bucket := m.bucket(target)
	key := ObjectKey(target.Namespace, publicID)
	info, err := m.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return domain.StoredObject{}, ToStoreError(err)
	}
	return domain.StoredObject{
		PublicID: publicID,
		URL:      m.objectURL(bucket, key),
		Bytes:    info.Size,
	}, nil
}

// PresignGetURL 生成一個 Presigned URL 用來獲取指定的 object
func (m *MinIOClient) PresignGetURL(ctx context.Context, target domain.StoreTarget, publicID string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	presignedURL, err := m.Client.PresignedGetObject(ctx, m.bucket(target), ObjectKey(target.Namespace, publicID), expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成 Presigned URL 失敗: %w", err)
	}
	return presignedURL.String(), nil
}

func (m *MinIOClient) bucket(target domain.StoreTarget) string {
	if target.Bucket != "" {
		return target.Bucket
	}
	return m.BucketName
}

func (m *MinIOClient) objectURL(bucket, key string) string {
	scheme := "http"
	if m.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.Endpoint, bucket, key)
}

// ObjectKey namespace/publicID
func ObjectKey(namespace, publicID string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return publicID
	}
	return namespace + "/" + publicID
}

// PartKeys keeps the keys that are exactly keyPrefix followed by a part number.
func PartKeys(keys []string, keyPrefix string) []string {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(keyPrefix) + `\d{3,}$`)
	var out []string
	for _, k := range keys {
		if pattern.MatchString(k) {
			out = append(out, k)
		}
	}
	return out
}

// ToStoreError maps minio / network errors to the fixed StoreError shape.
func ToStoreError(err error) *domain.StoreError {
	if err == nil {
		return nil
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return se
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.StoreError{Message: err.Error(), Timeout: true}
	}

	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 || resp.Code != "" {
		code := resp.StatusCode
		if code == 0 && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			code = http.StatusNotFound
		}
		msg := resp.Message
		if msg == "" {
			msg = err.Error()
		}
		return &domain.StoreError{Message: msg, HTTPCode: code}
	}
	return &domain.StoreError{Message: err.Error()}
}
