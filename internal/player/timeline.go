package player

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyTimeline no parts to play
var ErrEmptyTimeline = errors.New("timeline without parts")

// Timeline cumulative offsets of N parts: offsets[i] = sum(durations[0..i-1]).
// Immutable after NewTimeline.
type Timeline struct {
	durations []float64
	offsets   []float64 // len(durations)+1, the last entry is the total
}

// NewTimeline rejects an empty list and negative / NaN durations.
func NewTimeline(durations []float64) (*Timeline, error) {
	if len(durations) == 0 {
		return nil, ErrEmptyTimeline
	}
	t := &Timeline{
		durations: make([]float64, len(durations)),
		offsets:   make([]float64, len(durations)+1),
	}
	for i, d := range durations {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return nil, fmt.Errorf("part %d has invalid duration %v", i, d)
		}
		t.durations[i] = d
		t.offsets[i+1] = t.offsets[i] + d
	}
	return t, nil
}

// Len number of parts
func (t *Timeline) Len() int { return len(t.durations) }

// Total unified duration
func (t *Timeline) Total() float64 { return t.offsets[len(t.durations)] }

// Offset unified start of part i
func (t *Timeline) Offset(i int) float64 { return t.offsets[t.clampIndex(i)] }

// Duration of part i
func (t *Timeline) Duration(i int) float64 { return t.durations[t.clampIndex(i)] }

// Offsets start offset of every part
func (t *Timeline) Offsets() []float64 {
	out := make([]float64, len(t.durations))
	copy(out, t.offsets[:len(t.durations)])
	return out
}

// PartForTime greatest i with offsets[i] <= u. u is clamped to [0, Total].
func (t *Timeline) PartForTime(u float64) int {
	u = t.Clamp(u)
	n := len(t.durations)
	i := sort.Search(n, func(i int) bool { return t.offsets[i] > u }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// LocalTime part index and time inside that part for unified time u
func (t *Timeline) LocalTime(u float64) (int, float64) {
	u = t.Clamp(u)
	i := t.PartForTime(u)
	return i, u - t.offsets[i]
}

// UnifiedTime inverse of LocalTime
func (t *Timeline) UnifiedTime(part int, local float64) float64 {
	return t.Clamp(t.Offset(part) + local)
}

// Clamp u into [0, Total]
func (t *Timeline) Clamp(u float64) float64 {
	if math.IsNaN(u) || u < 0 {
		return 0
	}
	if total := t.Total(); u > total {
		return total
	}
	return u
}

func (t *Timeline) clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(t.durations) {
		return len(t.durations) - 1
	}
	return i
}
