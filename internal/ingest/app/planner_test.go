package app

import (
	"testing"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/assert"
)

func TestPlanSegments(t *testing.T) {
	limits := domain.Limits{StoreLimitBytes: 100 * domain.MB, TargetPartBytes: 70 * domain.MB, MinPartBytes: 50 * domain.MB, MaxParts: 20}

	plan := PlanSegments(220*domain.MB, 185, limits)
	assert.Equal(t, 4, plan.PartCount)
	assert.Equal(t, float64(46), plan.PartDurationSeconds)
	assert.Equal(t, float64(185), plan.SourceDurationSeconds)
}

func TestPlanSegments_MergesSmallTail(t *testing.T) {
	// ceil(110/90)=2 但 55MB 以上才不合併；110/2=55 OK
	plan := PlanSegments(110*domain.MB, 100, domain.DefaultLimits())
	assert.Equal(t, 2, plan.PartCount)

	// ceil(95/90)=2, 95/2=47.5 < 50 → 1
	plan = PlanSegments(95*domain.MB, 100, domain.DefaultLimits())
	assert.Equal(t, 1, plan.PartCount)
	assert.Equal(t, float64(100), plan.PartDurationSeconds)
}

func TestPlanSegments_Clamps(t *testing.T) {
	limits := domain.DefaultLimits()

	plan := PlanSegments(5000*domain.MB, 3600, limits)
	assert.Equal(t, limits.MaxParts, plan.PartCount)
	assert.Equal(t, float64(180), plan.PartDurationSeconds)

	// 時長太短時每段至少 1 秒
	plan = PlanSegments(300*domain.MB, 2, limits)
	assert.Equal(t, float64(1), plan.PartDurationSeconds)
	assert.GreaterOrEqual(t, plan.PartCount, 1)
}

func TestPlanSegments_Deterministic(t *testing.T) {
	limits := domain.DefaultLimits()
	first := PlanSegments(731*domain.MB, 913.4, limits)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PlanSegments(731*domain.MB, 913.4, limits))
	}
}
