package player

import "sort"

// TimeRange [Start, End) in seconds
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// MediaElement one underlying stream the host renders (a <video>, a native
// player, a test fake). Implementations deliver their events back through
// Player.OnTimeUpdate / OnEnded / OnSeeked / OnLoaded, passing themselves as
// the element, and must not do so from inside one of these methods.
type MediaElement interface {
	// Load replaces the source; a newer Load supersedes one still in flight
	Load(src string)
	Source() string
	Play() error
	Pause()
	SetCurrentTime(local float64)
	CurrentTime() float64
	Buffered() []TimeRange
}

// mergeRanges sorts and joins overlapping or touching ranges
func mergeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []TimeRange
	for _, r := range sorted {
		if n := len(out); n > 0 && r.Start <= out[n-1].End {
			if r.End > out[n-1].End {
				out[n-1].End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
