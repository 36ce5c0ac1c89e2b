package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	name     string
	src      string
	loads    []string
	current  float64
	seeks    []float64
	playing  bool
	buffered []TimeRange
}

func (f *fakeElement) Load(src string) {
	f.src = src
	f.loads = append(f.loads, src)
	f.current = 0
}
func (f *fakeElement) Source() string { return f.src }
func (f *fakeElement) Play() error {
	f.playing = true
	return nil
}
func (f *fakeElement) Pause() { f.playing = false }
func (f *fakeElement) SetCurrentTime(local float64) {
	f.current = local
	f.seeks = append(f.seeks, local)
}
func (f *fakeElement) CurrentTime() float64 { return f.current }
func (f *fakeElement) Buffered() []TimeRange { return f.buffered }

func threeParts() []Source {
	return []Source{
		{URL: "https://cdn/part-001", DurationSeconds: 46},
		{URL: "https://cdn/part-002", DurationSeconds: 46},
		{URL: "https://cdn/part-003", DurationSeconds: 46},
	}
}

func TestNewPlayer(t *testing.T) {
	_, err := NewPlayer(threeParts(), nil, nil, Options{})
	assert.Error(t, err)

	_, err = NewPlayer(nil, &fakeElement{}, nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyTimeline)

	primary, secondary := &fakeElement{name: "a"}, &fakeElement{name: "b"}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cdn/part-001"}, primary.loads)
	assert.Equal(t, []string{"https://cdn/part-002"}, secondary.loads)
	assert.Equal(t, float64(138), p.Snapshot().Total)
}

func TestPlayer_TimeUpdateMapsToUnifiedTime(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)

	require.NoError(t, p.Play())
	assert.True(t, primary.playing)

	p.OnTimeUpdate(primary, 12)
	snap := p.Snapshot()
	assert.Equal(t, 0, snap.PartIndex)
	assert.Equal(t, float64(12), snap.UnifiedTime)
	assert.True(t, snap.Playing)
}

func TestPlayer_AutoAdvanceWithPreload(t *testing.T) {
	primary, secondary := &fakeElement{name: "a"}, &fakeElement{name: "b"}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)
	p.OnLoaded(primary)
	p.OnLoaded(secondary)
	require.NoError(t, p.Play())

	p.OnEnded(primary)

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.PartIndex)
	assert.Equal(t, float64(46), snap.UnifiedTime)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.True(t, secondary.playing, "preloaded element takes over")
	assert.False(t, primary.playing)
	// 舊的 element 改去預載第三段
	assert.Equal(t, "https://cdn/part-003", primary.src)

	p.OnTimeUpdate(secondary, 4)
	assert.Equal(t, float64(50), p.Snapshot().UnifiedTime)
	// 背景預載中的 element 回報的時間不算
	p.OnTimeUpdate(primary, 30)
	assert.Equal(t, float64(50), p.Snapshot().UnifiedTime)
}

func TestPlayer_AutoAdvanceBeforePreloadFinished(t *testing.T) {
	primary, secondary := &fakeElement{name: "a"}, &fakeElement{name: "b"}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)
	p.OnLoaded(primary)
	require.NoError(t, p.Play())

	// secondary 還沒載完，不能直接換上去
	p.OnEnded(primary)
	assert.Equal(t, PhaseTransitioning, p.Snapshot().Phase)
	assert.Equal(t, "https://cdn/part-002", primary.src)
	assert.False(t, secondary.playing)

	p.OnLoaded(primary)
	snap := p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 1, snap.PartIndex)
	assert.True(t, primary.playing)
}

func TestPlayer_AutoAdvanceWithoutPreload(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)
	require.NoError(t, p.Play())

	p.OnEnded(primary)
	assert.Equal(t, PhaseTransitioning, p.Snapshot().Phase)
	assert.Equal(t, "https://cdn/part-002", primary.src)

	// 載入中的 time update 不能讓時間倒退
	p.OnTimeUpdate(primary, 0.5)
	assert.Equal(t, float64(46), p.Snapshot().UnifiedTime)

	p.OnLoaded(primary)
	snap := p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 1, snap.PartIndex)
	assert.True(t, primary.playing)
}

func TestPlayer_EndOfLastPart(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts()[:1], primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)
	require.NoError(t, p.Play())

	p.OnEnded(primary)

	snap := p.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, float64(46), snap.UnifiedTime)
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestPlayer_SeekAcrossParts(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)

	p.Seek(100)
	snap := p.Snapshot()
	assert.Equal(t, PhaseSeeking, snap.Phase)
	assert.Equal(t, 2, snap.PartIndex)
	assert.Equal(t, float64(100), snap.UnifiedTime)
	assert.Equal(t, "https://cdn/part-003", primary.src)

	// 還沒載完就到的 seeked/ended 都是舊的
	p.OnSeeked(primary)
	p.OnEnded(primary)
	assert.Equal(t, PhaseSeeking, p.Snapshot().Phase)
	assert.Equal(t, 2, p.Snapshot().PartIndex)

	p.OnLoaded(primary)
	assert.Equal(t, []float64{8}, primary.seeks)

	p.OnSeeked(primary)
	snap = p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, float64(100), snap.UnifiedTime)
}

func TestPlayer_PreloadLoadedDuringSeekIsNotTheActivePart(t *testing.T) {
	primary, secondary := &fakeElement{name: "a"}, &fakeElement{name: "b"}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)
	p.OnLoaded(primary)

	p.Seek(100)
	assert.Equal(t, "https://cdn/part-003", primary.src)

	// secondary 預載完第二段，不能把 pending 的位置套到還在載入的 primary
	p.OnLoaded(secondary)
	p.OnSeeked(secondary)
	assert.Empty(t, primary.seeks)
	assert.Equal(t, PhaseSeeking, p.Snapshot().Phase)

	p.OnLoaded(primary)
	assert.Equal(t, []float64{8}, primary.seeks)
	p.OnSeeked(primary)

	snap := p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 2, snap.PartIndex)
	assert.Equal(t, float64(100), snap.UnifiedTime)
}

func TestPlayer_SeekDuringTransition(t *testing.T) {
	t.Run("into the incoming part", func(t *testing.T) {
		primary := &fakeElement{}
		p, err := NewPlayer(threeParts(), primary, nil, Options{})
		require.NoError(t, err)
		p.OnLoaded(primary)
		require.NoError(t, p.Play())

		p.OnEnded(primary)
		require.Equal(t, PhaseTransitioning, p.Snapshot().Phase)

		p.Seek(50)
		assert.Equal(t, PhaseSeeking, p.Snapshot().Phase)
		assert.Len(t, primary.loads, 2, "the part already loading is not loaded again")

		p.OnLoaded(primary)
		p.OnSeeked(primary)

		snap := p.Snapshot()
		assert.Equal(t, PhaseIdle, snap.Phase)
		assert.Equal(t, 1, snap.PartIndex)
		assert.Equal(t, float64(50), snap.UnifiedTime)
		assert.Equal(t, []float64{4}, primary.seeks, "transition never rewinds to 0")
		assert.Equal(t, float64(4), primary.current)
		assert.True(t, primary.playing)
	})

	t.Run("back to an earlier part", func(t *testing.T) {
		primary := &fakeElement{}
		p, err := NewPlayer(threeParts(), primary, nil, Options{})
		require.NoError(t, err)
		p.OnLoaded(primary)
		require.NoError(t, p.Play())

		p.OnEnded(primary)
		require.Equal(t, PhaseTransitioning, p.Snapshot().Phase)

		p.Seek(20)
		assert.Equal(t, "https://cdn/part-001", primary.src)
		// 舊的 ended 不能再推進到下一段
		p.OnEnded(primary)
		assert.Equal(t, 0, p.Snapshot().PartIndex)

		p.OnLoaded(primary)
		p.OnSeeked(primary)

		snap := p.Snapshot()
		assert.Equal(t, PhaseIdle, snap.Phase)
		assert.Equal(t, 0, snap.PartIndex)
		assert.Equal(t, float64(20), snap.UnifiedTime)
		assert.Equal(t, []float64{20}, primary.seeks)
		assert.Equal(t, float64(20), primary.current)
	})
}

func TestPlayer_SeekWithinPart(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)

	p.Seek(20)
	assert.Equal(t, []float64{20}, primary.seeks)
	assert.Len(t, primary.loads, 1, "no reload for the same part")

	p.OnSeeked(primary)
	assert.Equal(t, PhaseIdle, p.Snapshot().Phase)
	assert.Equal(t, float64(20), p.Snapshot().UnifiedTime)
}

func TestPlayer_SeekIntoPreloadedPart(t *testing.T) {
	primary, secondary := &fakeElement{name: "a"}, &fakeElement{name: "b"}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)
	p.OnLoaded(primary)
	p.OnLoaded(secondary)

	p.Seek(50)
	assert.Equal(t, []float64{4}, secondary.seeks)
	assert.Len(t, secondary.loads, 1)

	p.OnSeeked(secondary)
	snap := p.Snapshot()
	assert.Equal(t, 1, snap.PartIndex)
	assert.Equal(t, float64(50), snap.UnifiedTime)
}

func TestPlayer_SeekFractionClamps(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)
	p.OnLoaded(primary)

	p.SeekFraction(0.5)
	assert.Equal(t, float64(69), p.Snapshot().UnifiedTime)

	p.SeekFraction(2)
	assert.Equal(t, float64(138), p.Snapshot().UnifiedTime)
}

func TestPlayer_BufferedRanges(t *testing.T) {
	primary := &fakeElement{buffered: []TimeRange{{0, 46}}}
	secondary := &fakeElement{buffered: []TimeRange{{0, 20}, {30, 99}}}
	p, err := NewPlayer(threeParts(), primary, secondary, Options{Preload: true})
	require.NoError(t, err)
	p.OnLoaded(primary)
	p.OnTimeUpdate(primary, 10)

	assert.Equal(t, []TimeRange{{0, 66}, {76, 92}}, p.BufferedRanges())
	assert.Equal(t, float64(66), p.BufferedEnd())
}

func TestPlayer_ListenerGetsSnapshots(t *testing.T) {
	primary := &fakeElement{}
	p, err := NewPlayer(threeParts(), primary, nil, Options{})
	require.NoError(t, err)

	var got []Snapshot
	p.OnChange(func(s Snapshot) {
		// listener 在鎖外被呼叫，可以讀狀態
		_ = p.Snapshot()
		got = append(got, s)
	})
	p.OnLoaded(primary)
	require.NoError(t, p.Play())
	p.OnTimeUpdate(primary, 3)

	require.NotEmpty(t, got)
	assert.Equal(t, float64(3), got[len(got)-1].UnifiedTime)
	assert.Equal(t, "seeking", PhaseSeeking.String())
}
