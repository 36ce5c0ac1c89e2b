package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/logger"

	"go.uber.org/zap"
)

// MediaSplitter cuts a staged source into part files following plan
type MediaSplitter interface {
	Split(ctx context.Context, path string, plan domain.SegmentationPlan, outDir string) ([]string, error)
}

// FFmpegSplitter lossless segment remux (-c copy), no re-encode
type FFmpegSplitter struct {
	Bin    string
	Limits domain.Limits
	run    CommandRunner
}

// NewFFmpegSplitter bin defaults to "ffmpeg"
func NewFFmpegSplitter(bin string, limits domain.Limits) *FFmpegSplitter {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegSplitter{Bin: bin, Limits: limits, run: execRunner}
}

var statFile = os.Stat

// Split returns the generated part paths in timeline order. Any part still
// above the store limit fails the whole split with *domain.OversizedPartError.
func (s *FFmpegSplitter) Split(ctx context.Context, path string, plan domain.SegmentationPlan, outDir string) ([]string, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp4"
	}
	pattern := filepath.Join(outDir, "part_%03d"+ext)

	args := []string{
		"-hide_banner",
		"-y",
		"-i", path,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(plan.PartDurationSeconds, 'f', -1, 64),
		"-reset_timestamps", "1",
		"-avoid_negative_ts", "make_zero",
		pattern,
	}
	logger.Log.Debug("run ffmpeg segment", zap.String("bin", s.Bin), zap.Strings("args", args))
	if _, err := s.run(ctx, s.Bin, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg segment %s: %w", filepath.Base(path), err)
	}

	files, err := filepath.Glob(filepath.Join(outDir, "part_*"+ext))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("ffmpeg segment %s produced no parts", filepath.Base(path))
	}
	sort.Strings(files)

	// segment muxer 只在 keyframe 切，實際數量可能比計畫多一段
	if s.Limits.MaxParts > 0 && len(files) > s.Limits.MaxParts {
		return nil, fmt.Errorf("ffmpeg segment %s produced %d parts, max is %d", filepath.Base(path), len(files), s.Limits.MaxParts)
	}

	for _, f := range files {
		fi, err := statFile(f)
		if err != nil {
			return nil, err
		}
		if s.Limits.StoreLimitBytes > 0 && fi.Size() > s.Limits.StoreLimitBytes {
			return nil, &domain.OversizedPartError{Path: f, Size: fi.Size(), Limit: s.Limits.StoreLimitBytes}
		}
	}

	logger.Log.Info("split finished",
		zap.String("source", filepath.Base(path)),
		zap.Int("planned", plan.PartCount),
		zap.Int("parts", len(files)),
		zap.Float64("segment_seconds", plan.PartDurationSeconds),
	)
	return files, nil
}
