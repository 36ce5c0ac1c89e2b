package app

import (
	"math"

	"video_ingest_service/internal/ingest/domain"
)

// PlanSegments 依檔案大小與時長計算分段數；純函式，相同輸入永遠得到相同結果
//
//  1. segments = ceil(fileSize / targetPartSize)
//  2. clamp to [1, MaxParts]
//  3. while segments > 1 and fileSize/segments < minPartSize: segments--
//  4. segmentDuration = max(1, floor(duration / segments))
func PlanSegments(fileSize int64, duration float64, limits domain.Limits) domain.SegmentationPlan {
	segments := 1
	if limits.TargetPartBytes > 0 && fileSize > 0 {
		segments = int((fileSize + limits.TargetPartBytes - 1) / limits.TargetPartBytes)
	}
	if segments < 1 {
		segments = 1
	}
	if limits.MaxParts > 0 && segments > limits.MaxParts {
		segments = limits.MaxParts
	}

	// 尾段太小就往回併
	for segments > 1 && fileSize/int64(segments) < limits.MinPartBytes {
		segments--
	}

	segmentDuration := math.Floor(duration / float64(segments))
	if math.IsNaN(segmentDuration) || segmentDuration < 1 {
		segmentDuration = 1
	}

	return domain.SegmentationPlan{
		PartCount:             segments,
		PartDurationSeconds:   segmentDuration,
		SourceDurationSeconds: duration,
	}
}
