package app

import (
	"context"
	"time"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore 是 ObjectStore 的 Mock
type MockObjectStore struct {
	mock.Mock
}

// Upload 模擬上傳
func (m *MockObjectStore) Upload(ctx context.Context, target domain.StoreTarget, filePath, publicID string, opts domain.UploadOptions) (domain.StoredObject, error) {
	args := m.Called(ctx, target, filePath, publicID, opts)
	return args.Get(0).(domain.StoredObject), args.Error(1)
}

// DeleteByID 模擬單筆刪除
func (m *MockObjectStore) DeleteByID(ctx context.Context, target domain.StoreTarget, publicID string) error {
	args := m.Called(ctx, target, publicID)
	return args.Error(0)
}

// DeleteByPrefix 模擬前綴刪除
func (m *MockObjectStore) DeleteByPrefix(ctx context.Context, target domain.StoreTarget, prefix string) error {
	args := m.Called(ctx, target, prefix)
	return args.Error(0)
}

// StatByID 模擬查詢物件
func (m *MockObjectStore) StatByID(ctx context.Context, target domain.StoreTarget, publicID string) (domain.StoredObject, error) {
	args := m.Called(ctx, target, publicID)
	return args.Get(0).(domain.StoredObject), args.Error(1)
}

// PresignGetURL 模擬 presign url
func (m *MockObjectStore) PresignGetURL(ctx context.Context, target domain.StoreTarget, publicID string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, target, publicID, expiry)
	return args.String(0), args.Error(1)
}

// MockVideoRepo 是 VideoRepo 的 Mock
type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) AutoMigrate() error {
	args := m.Called()
	return args.Error(0)
}

// Create 模擬創建影片記錄
func (m *MockVideoRepo) Create(ctx context.Context, video *domain.VideoRecord) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

func (m *MockVideoRepo) FindByOwnerAndID(ctx context.Context, ownerID string, id uint) (*domain.VideoRecord, error) {
	args := m.Called(ctx, ownerID, id)
	if v := args.Get(0); v != nil {
		return v.(*domain.VideoRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateFields 模擬更新影片欄位
func (m *MockVideoRepo) UpdateFields(ctx context.Context, ownerID string, id uint, fields map[string]interface{}) error {
	args := m.Called(ctx, ownerID, id, fields)
	return args.Error(0)
}

// DeleteByID 模擬刪除影片記錄
func (m *MockVideoRepo) DeleteByID(ctx context.Context, ownerID string, id uint) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

// MockPublisher 收集送出的事件
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.VideoEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockReconcileQueue 是 ReconcileQueue 的 Mock
type MockReconcileQueue struct {
	mock.Mock
}

func (m *MockReconcileQueue) Enqueue(ctx context.Context, job domain.ReconcileJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockRunJournal 是 RunJournal 的 Mock
type MockRunJournal struct {
	mock.Mock
}

func (m *MockRunJournal) Record(ctx context.Context, run domain.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunJournal) RecentByOwner(ctx context.Context, ownerID string, limit int64) ([]domain.IngestRun, error) {
	args := m.Called(ctx, ownerID, limit)
	runs, _ := args.Get(0).([]domain.IngestRun)
	return runs, args.Error(1)
}

var testTarget = domain.StoreTarget{Bucket: "video-bucket", Namespace: "videos"}

func storeErr(code int) error {
	return &domain.StoreError{HTTPCode: code, Message: "mock"}
}
