package player

import (
	"errors"
	"sync"
)

// Phase what the player is waiting for. Seeking and transitioning never
// overlap: a seek issued mid-transition replaces the transition.
type Phase int

const (
	// PhaseIdle time updates from the active element are reported
	PhaseIdle Phase = iota
	// PhaseSeeking waiting for OnSeeked (and OnLoaded when the part changed)
	PhaseSeeking
	// PhaseTransitioning auto-advance to the next part, waiting for OnLoaded
	PhaseTransitioning
)

func (p Phase) String() string {
	switch p {
	case PhaseSeeking:
		return "seeking"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return "idle"
	}
}

// Source one part of the logical video
type Source struct {
	URL             string
	DurationSeconds float64
}

// Options player options
type Options struct {
	// Preload loads part i+1 into the secondary element while part i plays
	Preload bool
}

// Snapshot state reported to listeners
type Snapshot struct {
	PartIndex   int
	UnifiedTime float64
	Total       float64
	Playing     bool
	Phase       Phase
}

// Player presents N part streams as one timeline.
type Player struct {
	mu sync.Mutex

	timeline *Timeline
	sources  []Source
	opts     Options

	active    MediaElement
	secondary MediaElement
	// part index loaded in secondary, -1 when none
	preloaded int
	// secondary finished loading the preloaded part
	secondaryReady bool

	partIndex   int
	unifiedTime float64
	playing     bool
	phase       Phase
	// active element has a Load in flight
	loading bool
	// local time to apply once the new part finished loading
	pendingLocal *float64

	listener func(Snapshot)
}

// NewPlayer primary is required, secondary may be nil (no preloading).
func NewPlayer(sources []Source, primary, secondary MediaElement, opts Options) (*Player, error) {
	if primary == nil {
		return nil, errors.New("player needs a primary media element")
	}
	durations := make([]float64, len(sources))
	for i, s := range sources {
		durations[i] = s.DurationSeconds
	}
	timeline, err := NewTimeline(durations)
	if err != nil {
		return nil, err
	}

	p := &Player{
		timeline:  timeline,
		sources:   append([]Source(nil), sources...),
		opts:      opts,
		active:    primary,
		secondary: secondary,
		preloaded: -1,
	}
	p.active.Load(p.sources[0].URL)
	p.loading = true
	p.preloadNextLocked()
	return p, nil
}

// Timeline offsets used by this player
func (p *Player) Timeline() *Timeline { return p.timeline }

// OnChange registers the listener called after every state change
func (p *Player) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
}

// Snapshot current state
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Play resumes the active part
func (p *Player) Play() error {
	p.mu.Lock()
	p.playing = true
	var err error
	if p.phase == PhaseIdle {
		err = p.active.Play()
	}
	p.emit()
	return err
}

// Pause pauses the active part
func (p *Player) Pause() {
	p.mu.Lock()
	p.playing = false
	p.active.Pause()
	p.emit()
}

// OnTimeUpdate el reports its local clock. Only the active element counts,
// and only while idle so the displayed time never jumps back.
func (p *Player) OnTimeUpdate(el MediaElement, local float64) {
	p.mu.Lock()
	if el != p.active || p.phase != PhaseIdle {
		p.mu.Unlock()
		return
	}
	p.unifiedTime = p.timeline.UnifiedTime(p.partIndex, local)
	p.emit()
}

// OnEnded el finished its part. For the active element this advances to the
// next part, or stops at the end of the last one. An ended event during a
// seek is stale and dropped.
func (p *Player) OnEnded(el MediaElement) {
	p.mu.Lock()
	if el != p.active || p.phase == PhaseSeeking {
		p.mu.Unlock()
		return
	}
	last := p.timeline.Len() - 1
	if p.partIndex >= last {
		p.playing = false
		p.phase = PhaseIdle
		p.unifiedTime = p.timeline.Total()
		p.emit()
		return
	}

	next := p.partIndex + 1
	p.partIndex = next
	p.unifiedTime = p.timeline.Offset(next)
	if p.swapToPreloadedLocked(next) {
		// 已預載，直接接上
		p.active.SetCurrentTime(0)
		p.phase = PhaseIdle
		if p.playing {
			_ = p.active.Play()
		}
		p.preloadNextLocked()
	} else {
		p.phase = PhaseTransitioning
		p.active.Load(p.sources[next].URL)
		p.loading = true
	}
	p.emit()
}

// OnLoaded el finished loading its current source. For the secondary element
// this only marks the preloaded part as ready to swap in.
func (p *Player) OnLoaded(el MediaElement) {
	p.mu.Lock()
	if el != p.active {
		if el != nil && el == p.secondary && p.preloaded >= 0 {
			p.secondaryReady = true
		}
		p.mu.Unlock()
		return
	}
	p.loading = false
	switch p.phase {
	case PhaseTransitioning:
		p.active.SetCurrentTime(0)
		p.phase = PhaseIdle
		if p.playing {
			_ = p.active.Play()
		}
		p.preloadNextLocked()
	case PhaseSeeking:
		if p.pendingLocal != nil {
			p.active.SetCurrentTime(*p.pendingLocal)
			p.pendingLocal = nil
		}
	default:
		p.mu.Unlock()
		return
	}
	p.emit()
}

// OnSeeked el finished seeking; only the active element's seek completes one.
func (p *Player) OnSeeked(el MediaElement) {
	p.mu.Lock()
	if el != p.active || p.phase != PhaseSeeking || p.pendingLocal != nil {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseIdle
	p.unifiedTime = p.timeline.UnifiedTime(p.partIndex, p.active.CurrentTime())
	if p.playing {
		_ = p.active.Play()
	}
	p.preloadNextLocked()
	p.emit()
}

// Seek jumps to unified time u (clamped to [0, Total]).
func (p *Player) Seek(u float64) {
	p.mu.Lock()
	target, local := p.timeline.LocalTime(u)
	p.phase = PhaseSeeking
	p.unifiedTime = p.timeline.UnifiedTime(target, local)
	p.pendingLocal = nil

	switch {
	case target == p.partIndex && p.active.Source() == p.sources[target].URL:
		if p.loading {
			// 同一段還在載入，載完再套用
			p.pendingLocal = &local
		} else {
			p.active.SetCurrentTime(local)
		}
	case p.swapToPreloadedLocked(target):
		p.loading = false
		p.active.SetCurrentTime(local)
	default:
		p.pendingLocal = &local
		p.active.Load(p.sources[target].URL)
		p.loading = true
	}
	p.partIndex = target
	p.emit()
}

// SeekFraction seek from a click on the unified progress bar, f in [0, 1]
func (p *Player) SeekFraction(f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	p.Seek(f * p.timeline.Total())
}

// BufferedRanges buffered ranges of the active and preloaded parts on the
// unified axis.
func (p *Player) BufferedRanges() []TimeRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferedLocked()
}

// BufferedEnd end of the buffered range that contains the current time
func (p *Player) BufferedEnd() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.bufferedLocked() {
		if r.Start <= p.unifiedTime && p.unifiedTime <= r.End {
			return r.End
		}
	}
	return p.unifiedTime
}

func (p *Player) bufferedLocked() []TimeRange {
	var ranges []TimeRange
	add := func(el MediaElement, part int) {
		if el == nil || part < 0 {
			return
		}
		offset := p.timeline.Offset(part)
		limit := p.timeline.Duration(part)
		for _, r := range el.Buffered() {
			start, end := clampRange(r.Start, limit), clampRange(r.End, limit)
			ranges = append(ranges, TimeRange{Start: offset + start, End: offset + end})
		}
	}
	if p.phase != PhaseTransitioning && p.pendingLocal == nil {
		add(p.active, p.partIndex)
	}
	if p.preloaded >= 0 {
		add(p.secondary, p.preloaded)
	}
	return mergeRanges(ranges)
}

func clampRange(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// swapToPreloadedLocked makes the secondary element active when it holds
// part and has finished loading it.
func (p *Player) swapToPreloadedLocked(part int) bool {
	if p.secondary == nil || !p.secondaryReady || p.preloaded != part || p.secondary.Source() != p.sources[part].URL {
		return false
	}
	p.active.Pause()
	p.active, p.secondary = p.secondary, p.active
	p.preloaded = -1
	p.secondaryReady = false
	return true
}

func (p *Player) preloadNextLocked() {
	if !p.opts.Preload || p.secondary == nil {
		return
	}
	next := p.partIndex + 1
	if next >= p.timeline.Len() || p.preloaded == next {
		return
	}
	p.secondary.Load(p.sources[next].URL)
	p.preloaded = next
	p.secondaryReady = false
}

func (p *Player) snapshotLocked() Snapshot {
	return Snapshot{
		PartIndex:   p.partIndex,
		UnifiedTime: p.unifiedTime,
		Total:       p.timeline.Total(),
		Playing:     p.playing,
		Phase:       p.phase,
	}
}

// emit releases the lock, then calls the listener outside it
func (p *Player) emit() {
	snap := p.snapshotLocked()
	fn := p.listener
	p.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
