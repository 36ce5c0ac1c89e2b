package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/internal/ingest/repository"
	"video_ingest_service/internal/player"
	"video_ingest_service/pkg/database"
	errprocess "video_ingest_service/pkg/err"
	"video_ingest_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestUseCase 這裡封裝了對外提供的應用服務
type IngestUseCase interface {
	UploadVideo(ctx context.Context, job domain.IngestJob) (*domain.VideoRecord, error)
	GetVideo(ctx context.Context, ownerID string, id uint) (*domain.VideoRecord, error)
	GetPlayback(ctx context.Context, ownerID string, id uint) (*domain.PlaybackManifest, error)
	UpdateVideo(ctx context.Context, ownerID string, id uint, patch domain.VideoPatch) (*domain.VideoRecord, error)
	DeleteVideo(ctx context.Context, ownerID string, id uint, explicitIDs []string) (*domain.DeleteVideoRes, error)
	RetryDelete(ctx context.Context, job domain.ReconcileJob) (*domain.DeleteVideoRes, error)
	ListRuns(ctx context.Context, ownerID string, limit int64) ([]domain.IngestRun, error)
}

// VideoIngester runs the ingest pipeline
type VideoIngester interface {
	Run(ctx context.Context, job domain.IngestJob) (*PipelineResult, error)
}

// RemoteReconciler deletes the remote side of a video
type RemoteReconciler interface {
	Reconcile(ctx context.Context, target domain.StoreTarget, record *domain.VideoRecord, explicitIDs []string) ReconcileResult
}

// UseCaseDeps Cache, Events, RetryQueue and Journal are optional
type UseCaseDeps struct {
	Pipeline   VideoIngester
	Reconciler RemoteReconciler
	Repo       repository.VideoRepo
	Store      database.ObjectStore
	Cache      database.RedisRepository[domain.PlaybackManifest]
	Events     EventPublisher
	RetryQueue ReconcileQueue
	Journal    repository.RunJournal

	Target     domain.StoreTarget
	PresignTTL time.Duration
	CacheTTL   time.Duration
	// ReconcileAttempts background rounds after the first partial delete
	ReconcileAttempts int
}

type ingestUseCase struct {
	deps UseCaseDeps
}

// NewIngestUseCase 建立一個新的 IngestUseCase
func NewIngestUseCase(deps UseCaseDeps) IngestUseCase {
	if deps.Events == nil {
		deps.Events = NoopPublisher{}
	}
	if deps.PresignTTL <= 0 {
		deps.PresignTTL = time.Hour
	}
	if deps.CacheTTL <= 0 || deps.CacheTTL > deps.PresignTTL/2 {
		deps.CacheTTL = deps.PresignTTL / 2
	}
	if deps.ReconcileAttempts <= 0 {
		deps.ReconcileAttempts = DefaultReconcileAttempts
	}
	return &ingestUseCase{deps: deps}
}

// UploadVideo 執行完整的 ingest pipeline，成功才會有 VideoRecord
func (u *ingestUseCase) UploadVideo(ctx context.Context, job domain.IngestJob) (*domain.VideoRecord, error) {
	if job.Target == (domain.StoreTarget{}) {
		job.Target = u.deps.Target
	}
	started := time.Now()
	res, err := u.deps.Pipeline.Run(ctx, job)
	u.journal(ctx, job, res, err, started)
	if err != nil {
		return nil, err
	}

	record := res.Record
	u.publish(ctx, domain.VideoEvent{
		Type:      domain.EventVideoIngested,
		VideoID:   record.ID,
		OwnerID:   record.OwnerID,
		PublicIDs: record.PublicIDs(),
	})
	return record, nil
}

// journal 寫入失敗只記 log，不影響上傳結果
func (u *ingestUseCase) journal(ctx context.Context, job domain.IngestJob, res *PipelineResult, runErr error, started time.Time) {
	if u.deps.Journal == nil || res == nil {
		return
	}
	run := domain.IngestRun{
		ID:         uuid.NewString(),
		OwnerID:    job.OwnerID,
		FileName:   job.FileName,
		Title:      job.Title,
		State:      res.State,
		History:    res.History,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if res.Plan != nil {
		run.PartCount = res.Plan.PartCount
	}
	if res.Record != nil {
		run.VideoID = res.Record.ID
		run.PartCount = res.Record.TotalParts
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := u.deps.Journal.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Log.Warn("record ingest run failed", zap.String("owner_id", job.OwnerID), zap.Error(err))
	}
}

// ListRuns newest first, limit clamped to [1, 100]
func (u *ingestUseCase) ListRuns(ctx context.Context, ownerID string, limit int64) ([]domain.IngestRun, error) {
	if u.deps.Journal == nil {
		return []domain.IngestRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	runs, err := u.deps.Journal.RecentByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, errprocess.Wrap(fmt.Sprintf("ownerID[%s] 查詢 ingest 紀錄失敗", ownerID), err)
	}
	return runs, nil
}

// GetVideo .
func (u *ingestUseCase) GetVideo(ctx context.Context, ownerID string, id uint) (*domain.VideoRecord, error) {
	video, err := u.deps.Repo.FindByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, errprocess.Wrap(fmt.Sprintf("videoID[%d] 查詢影片失敗", id), err)
	}
	return video, nil
}

// GetPlayback parts in index order with presigned urls and timeline offsets
func (u *ingestUseCase) GetPlayback(ctx context.Context, ownerID string, id uint) (*domain.PlaybackManifest, error) {
	key := playbackKey(ownerID, id)
	if u.deps.Cache != nil {
		cached, err := u.deps.Cache.Get(ctx, key)
		if err == nil && time.Until(cached.ExpiresAt) > u.deps.CacheTTL/2 {
			return &cached, nil
		}
		if err != nil && !errors.Is(err, database.ErrCacheMiss) {
			logger.Log.Warn("read playback cache failed", zap.String("key", key), zap.Error(err))
		}
	}

	video, err := u.GetVideo(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	parts := playbackSources(video)
	durations := make([]float64, len(parts))
	for i, p := range parts {
		durations[i] = p.DurationSeconds
	}
	timeline, err := player.NewTimeline(durations)
	if err != nil {
		return nil, errprocess.Wrap(fmt.Sprintf("videoID[%d] 建立播放時間軸失敗", id), err)
	}

	target := u.targetFor(video)
	for i := range parts {
		url, err := u.deps.Store.PresignGetURL(ctx, target, parts[i].PublicID, u.deps.PresignTTL)
		if err != nil {
			return nil, errprocess.Wrap(fmt.Sprintf("videoID[%d] 取得播放網址失敗", id), err)
		}
		parts[i].URL = url
		parts[i].OffsetSeconds = timeline.Offset(i)
	}

	manifest := &domain.PlaybackManifest{
		VideoID:              video.ID,
		Title:                video.Title,
		TotalDurationSeconds: timeline.Total(),
		IsMultipart:          video.IsMultipart,
		Parts:                parts,
		ExpiresAt:            time.Now().Add(u.deps.PresignTTL),
	}
	if u.deps.Cache != nil {
		if err := u.deps.Cache.Set(ctx, key, *manifest, u.deps.CacheTTL); err != nil {
			logger.Log.Warn("write playback cache failed", zap.String("key", key), zap.Error(err))
		}
	}
	return manifest, nil
}

// UpdateVideo only title and description are editable
func (u *ingestUseCase) UpdateVideo(ctx context.Context, ownerID string, id uint, patch domain.VideoPatch) (*domain.VideoRecord, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("title can not be empty: %w", domain.ErrInvalidInput)
	}
	if err := u.deps.Repo.UpdateFields(ctx, ownerID, id, patch.Fields()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, errprocess.Wrap(fmt.Sprintf("videoID[%d] 更新影片失敗", id), err)
	}
	u.invalidate(ctx, ownerID, id)
	return u.GetVideo(ctx, ownerID, id)
}

// DeleteVideo the record is removed only after every remote id is gone. On a
// partial failure the record stays, the failed ids are reported, and a retry
// job is queued when a queue is configured.
func (u *ingestUseCase) DeleteVideo(ctx context.Context, ownerID string, id uint, explicitIDs []string) (*domain.DeleteVideoRes, error) {
	return u.deleteVideo(ctx, ownerID, id, explicitIDs, 0)
}

// RetryDelete one background round for ids left over by an earlier delete
func (u *ingestUseCase) RetryDelete(ctx context.Context, job domain.ReconcileJob) (*domain.DeleteVideoRes, error) {
	return u.deleteVideo(ctx, job.OwnerID, job.VideoID, job.PublicIDs, job.Attempt)
}

func (u *ingestUseCase) deleteVideo(ctx context.Context, ownerID string, id uint, explicitIDs []string, attempt int) (*domain.DeleteVideoRes, error) {
	video, err := u.GetVideo(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnedIDs(video, explicitIDs); err != nil {
		return nil, err
	}

	result := u.deps.Reconciler.Reconcile(ctx, u.targetFor(video), video, explicitIDs)
	if !result.Deleted {
		u.publish(ctx, domain.VideoEvent{
			Type:      domain.EventVideoDeleteFailed,
			VideoID:   video.ID,
			OwnerID:   ownerID,
			FailedIDs: result.FailedIDs,
		})
		if u.deps.RetryQueue != nil && attempt < u.deps.ReconcileAttempts {
			job := domain.ReconcileJob{VideoID: video.ID, OwnerID: ownerID, PublicIDs: result.FailedIDs, Attempt: attempt + 1}
			if err := u.deps.RetryQueue.Enqueue(ctx, job); err != nil {
				logger.Log.Warn("enqueue reconcile retry failed", zap.Uint("video_id", video.ID), zap.Error(err))
			}
		}
		return &domain.DeleteVideoRes{Deleted: false, FailedIDs: result.FailedIDs},
			&domain.ReconciliationError{FailedIDs: result.FailedIDs}
	}

	if err := u.deps.Repo.DeleteByID(ctx, ownerID, video.ID); err != nil {
		return nil, errprocess.Wrap(fmt.Sprintf("videoID[%d] 刪除影片記錄失敗", id), err)
	}
	u.invalidate(ctx, ownerID, id)
	u.publish(ctx, domain.VideoEvent{
		Type:      domain.EventVideoDeleted,
		VideoID:   video.ID,
		OwnerID:   ownerID,
		PublicIDs: video.PublicIDs(),
	})
	return &domain.DeleteVideoRes{Deleted: true}, nil
}

// checkOwnedIDs every explicit id has to be one of the video's own ids or
// carry one of its "<base>-part-" prefixes.
func checkOwnedIDs(video *domain.VideoRecord, explicitIDs []string) error {
	owned := make(map[string]struct{})
	prefixes := make(map[string]struct{})
	for _, pid := range video.PublicIDs() {
		owned[pid] = struct{}{}
		if prefix, ok := MultipartPrefix(pid); ok {
			prefixes[prefix] = struct{}{}
		}
	}

	var foreign []string
	for _, pid := range explicitIDs {
		if pid == "" {
			continue
		}
		if _, ok := owned[pid]; ok {
			continue
		}
		if prefix, ok := MultipartPrefix(pid); ok {
			if _, mine := prefixes[prefix]; mine {
				continue
			}
		}
		foreign = append(foreign, pid)
	}
	if len(foreign) > 0 {
		return fmt.Errorf("videoID[%d] ids %v do not belong to this video: %w", video.ID, foreign, domain.ErrInvalidInput)
	}
	return nil
}

func (u *ingestUseCase) targetFor(video *domain.VideoRecord) domain.StoreTarget {
	target := u.deps.Target
	if video.StorageNamespace != "" {
		target.Namespace = video.StorageNamespace
	}
	return target
}

func (u *ingestUseCase) invalidate(ctx context.Context, ownerID string, id uint) {
	if u.deps.Cache == nil {
		return
	}
	if err := u.deps.Cache.Del(ctx, playbackKey(ownerID, id)); err != nil {
		logger.Log.Warn("invalidate playback cache failed", zap.Uint("video_id", id), zap.Error(err))
	}
}

// publish 事件失敗只記 log，不影響主流程
func (u *ingestUseCase) publish(ctx context.Context, event domain.VideoEvent) {
	event.OccurredAt = time.Now().UTC()
	if err := u.deps.Events.Publish(ctx, event); err != nil {
		logger.Log.Warn("publish event failed",
			zap.String("type", string(event.Type)),
			zap.Uint("video_id", event.VideoID),
			zap.Error(err),
		)
	}
}

func playbackSources(video *domain.VideoRecord) []domain.PlaybackPart {
	if !video.IsMultipart || len(video.Parts) == 0 {
		return []domain.PlaybackPart{{
			Index:           0,
			PublicID:        video.PrimaryPartID,
			DurationSeconds: video.TotalDurationSeconds,
		}}
	}
	parts := make([]domain.PlaybackPart, len(video.Parts))
	for i, p := range video.Parts {
		parts[i] = domain.PlaybackPart{
			Index:           i,
			PublicID:        p.PublicID,
			DurationSeconds: p.DurationSeconds,
		}
	}
	return parts
}

func playbackKey(ownerID string, id uint) string {
	return fmt.Sprintf("playback:%s:%d", ownerID, id)
}
