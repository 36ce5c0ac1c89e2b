package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/internal/ingest/repository"
	"video_ingest_service/pkg/database"
	errprocess "video_ingest_service/pkg/err"
	"video_ingest_service/pkg/logger"
	"video_ingest_service/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 讓 pipeline test 可以替換檔案操作
var (
	makeStagingDir = func(root string) (string, error) {
		if root != "" {
			if err := os.MkdirAll(root, 0755); err != nil {
				return "", err
			}
		}
		return os.MkdirTemp(root, "ingest-*")
	}

	removeStagingDir = os.RemoveAll

	createFile = func(name string) (*os.File, error) {
		return os.Create(name)
	}

	copyFile = func(dst *os.File, src io.Reader) (written int64, err error) {
		return io.Copy(dst, src)
	}
)

// PipelineOptions knobs of one Pipeline
type PipelineOptions struct {
	Limits     domain.Limits
	StagingDir string
	// Rollback deletes parts already uploaded when the run fails
	Rollback bool
	Metrics  *metrics.Metrics
}

// PipelineResult final state, visited states and the persisted record (nil unless Complete)
type PipelineResult struct {
	State   domain.PipelineState
	History []domain.PipelineState
	Record  *domain.VideoRecord
	Plan    *domain.SegmentationPlan
}

// Pipeline Staged -> Probed -> (DirectUpload | Split -> PartsUploading) -> Assembling -> Complete | Failed
type Pipeline struct {
	prober   MediaProber
	splitter MediaSplitter
	uploader PartUploader
	store    database.ObjectStore
	repo     repository.VideoRepo
	opts     PipelineOptions
}

// NewPipeline create Pipeline
func NewPipeline(prober MediaProber, splitter MediaSplitter, uploader PartUploader,
	store database.ObjectStore,
	repo repository.VideoRepo,
	opts PipelineOptions,
) *Pipeline {
	return &Pipeline{
		prober:   prober,
		splitter: splitter,
		uploader: uploader,
		store:    store,
		repo:     repo,
		opts:     opts,
	}
}

type pipelineRun struct {
	result   *PipelineResult
	target   domain.StoreTarget
	uploaded []string
	log      *logger.Scoped
}

func (r *pipelineRun) transition(to domain.PipelineState) error {
	from := r.result.State
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal pipeline transition %s -> %s", from, to)
	}
	r.result.State = to
	r.result.History = append(r.result.History, to)
	r.log.Debug("pipeline state", zap.String("from", string(from)), zap.String("to", string(to)))
	return nil
}

// Run ingests one asset. Either a complete record is persisted or nothing
// is; the staging directory is removed on every exit path.
func (p *Pipeline) Run(ctx context.Context, job domain.IngestJob) (*PipelineResult, error) {
	if job.File == nil || strings.TrimSpace(job.Title) == "" || job.OwnerID == "" {
		return nil, fmt.Errorf("fileName[%s] owner, title and file are required: %w", job.FileName, domain.ErrInvalidInput)
	}

	run := &pipelineRun{
		result: &PipelineResult{State: domain.StateStaged, History: []domain.PipelineState{domain.StateStaged}},
		target: job.Target,
		log:    logger.Log.With(zap.String("owner_id", job.OwnerID), zap.String("file", job.FileName)),
	}

	start := time.Now()
	p.opts.Metrics.PipelineStarted()
	defer func() {
		p.opts.Metrics.PipelineFinished(run.result.State == domain.StateComplete, run.result.Plan != nil, time.Since(start))
	}()

	stagingDir, err := makeStagingDir(p.opts.StagingDir)
	if err != nil {
		_ = run.transition(domain.StateFailed)
		return run.result, errprocess.Wrap(fmt.Sprintf("fileName[%s] 建立暫存目錄失敗", job.FileName), err)
	}
	defer func() {
		if rmErr := removeStagingDir(stagingDir); rmErr != nil {
			run.log.Warn("remove staging dir failed", zap.String("dir", stagingDir), zap.Error(rmErr))
		}
	}()

	record, err := p.run(ctx, run, job, stagingDir)
	if err != nil {
		if tErr := run.transition(domain.StateFailed); tErr != nil {
			run.log.Error("mark pipeline failed", zap.Error(tErr))
		}
		p.rollback(run)
		return run.result, err
	}

	run.result.Record = record
	if err := run.transition(domain.StateComplete); err != nil {
		return run.result, err
	}
	run.log.Info("pipeline complete",
		zap.Uint("video_id", record.ID),
		zap.Bool("multipart", record.IsMultipart),
		zap.Int("parts", record.TotalParts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run.result, nil
}

func (p *Pipeline) run(ctx context.Context, run *pipelineRun, job domain.IngestJob, stagingDir string) (*domain.VideoRecord, error) {
	sourcePath := filepath.Join(stagingDir, "source"+sourceExt(job.FileName))
	size, err := stageSource(job.File, sourcePath)
	if err != nil {
		return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 儲存暫存檔案失敗", job.FileName), err)
	}

	info, err := p.prober.Probe(ctx, sourcePath)
	if err != nil {
		var pe *domain.ProbeError
		if !errors.As(err, &pe) {
			err = &domain.ProbeError{Path: sourcePath, Err: err}
		}
		return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 解析影片失敗", job.FileName), err)
	}
	if err := run.transition(domain.StateProbed); err != nil {
		return nil, err
	}

	baseID := NewBaseID(job.FileName)
	var parts []domain.PartMetadata

	if size <= p.opts.Limits.StoreLimitBytes {
		if err := run.transition(domain.StateDirectUpload); err != nil {
			return nil, err
		}
		part, err := p.uploader.Upload(ctx, job.Target, sourcePath, baseID)
		if err != nil {
			return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 上傳影片失敗", job.FileName), err)
		}
		run.uploaded = append(run.uploaded, part.PublicID)
		applyMediaInfo(&part, info)
		parts = []domain.PartMetadata{part}
	} else {
		if err := run.transition(domain.StateSplit); err != nil {
			return nil, err
		}
		plan := PlanSegments(size, info.DurationSeconds, p.opts.Limits)
		run.result.Plan = &plan
		run.log.Info("split planned",
			zap.Int64("size", size),
			zap.Float64("duration", info.DurationSeconds),
			zap.Int("part_count", plan.PartCount),
			zap.Float64("part_seconds", plan.PartDurationSeconds),
		)

		partsDir := filepath.Join(stagingDir, "parts")
		if err := os.MkdirAll(partsDir, 0755); err != nil {
			return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 建立分段目錄失敗", job.FileName), err)
		}
		files, err := p.splitter.Split(ctx, sourcePath, plan, partsDir)
		if err != nil {
			return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 切割影片失敗", job.FileName), err)
		}

		if err := run.transition(domain.StatePartsUploading); err != nil {
			return nil, err
		}
		parts, err = p.uploadParts(ctx, run, job.Target, baseID, files, info)
		if err != nil {
			return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 分段上傳失敗", job.FileName), err)
		}
	}

	if err := run.transition(domain.StateAssembling); err != nil {
		return nil, err
	}
	record, err := Assemble(AssembleInput{
		OwnerID:     job.OwnerID,
		Title:       job.Title,
		Description: job.Description,
		Parts:       parts,
	})
	if err != nil {
		return nil, err
	}
	if err := p.repo.Create(ctx, record); err != nil {
		return nil, errprocess.Wrap(fmt.Sprintf("fileName[%s] 資料庫建立影片失敗", job.FileName), err)
	}
	return record, nil
}

// uploadParts 每個分段各自 probe + 上傳，結果寫進預先配置的 index 位置；
// 任何一段失敗都不會取消其他段，全部結束後才決定成敗
func (p *Pipeline) uploadParts(ctx context.Context, run *pipelineRun, target domain.StoreTarget, baseID string, files []string, source domain.MediaInfo) ([]domain.PartMetadata, error) {
	results := make([]domain.PartMetadata, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			info, err := p.prober.Probe(ctx, file)
			if err != nil {
				errs[i] = err
				return nil
			}
			part, err := p.uploader.Upload(ctx, target, file, PartPublicID(baseID, i))
			if err != nil {
				errs[i] = err
				return nil
			}
			if info.BitRate == 0 {
				info.BitRate = source.BitRate
			}
			applyMediaInfo(&part, info)
			part.PartIndex = i
			results[i] = part
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	for i, err := range errs {
		if err == nil {
			run.uploaded = append(run.uploaded, results[i].PublicID)
			continue
		}
		run.log.Error("part failed", zap.Int("part_index", i), zap.String("public_id", PartPublicID(baseID, i)), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// rollback best effort; never changes the pipeline outcome
func (p *Pipeline) rollback(run *pipelineRun) {
	if !p.opts.Rollback || p.store == nil || len(run.uploaded) == 0 {
		return
	}
	ctx := context.Background()
	for _, id := range run.uploaded {
		if err := p.store.DeleteByID(ctx, run.target, id); err != nil {
			run.log.Warn("rollback delete failed", zap.String("public_id", id), zap.Error(err))
		}
	}
	run.log.Info("rolled back uploaded parts", zap.Strings("public_ids", run.uploaded))
}

func applyMediaInfo(part *domain.PartMetadata, info domain.MediaInfo) {
	if part.DurationSeconds == 0 {
		part.DurationSeconds = info.DurationSeconds
	}
	if part.Width == 0 {
		part.Width = info.Width
	}
	if part.Height == 0 {
		part.Height = info.Height
	}
	if part.Format == "" {
		part.Format = firstFormatName(info.FormatName)
	}
	if info.BitRate > 0 {
		b := info.BitRate
		part.BitRate = &b
	}
	if info.FrameRate > 0 {
		f := info.FrameRate
		part.FrameRate = &f
	}
	if info.VideoCodec != "" {
		v := info.VideoCodec
		part.VideoCodec = &v
	}
	if info.AudioCodec != "" {
		a := info.AudioCodec
		part.AudioCodec = &a
	}
}

func stageSource(src io.Reader, path string) (int64, error) {
	f, err := createFile(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := copyFile(f, src)
	if err != nil {
		return 0, err
	}
	return n, f.Sync()
}

func sourceExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) > 6 {
		return ".mp4"
	}
	return ext
}
