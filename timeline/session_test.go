package timeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestPhase(t *testing.T) {
	tests := []struct {
		beats, quantum, want float64
	}{
		{0, 1, 0},
		{0.25, 1, 0.25},
		{1.5, 1, 0.5},
		{5, 4, 1},
		{-0.25, 1, 0.75},
		{3, 0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Phase(tt.beats, tt.quantum), 1e-9, "Phase(%v, %v)", tt.beats, tt.quantum)
	}
}

func TestClampTempo(t *testing.T) {
	assert.Equal(t, MinTempo, ClampTempo(5))
	assert.Equal(t, MaxTempo, ClampTempo(5000))
	assert.Equal(t, 120.0, ClampTempo(120))
}

func TestSessionPhase(t *testing.T) {
	clk := newFakeClock()
	s := newSession(120, clk.Now)

	state := s.Capture()
	assert.Equal(t, 120.0, state.Tempo())
	assert.False(t, state.IsPlaying())
	assert.InDelta(t, 0, state.PhaseAtTime(s.Now(), 1), 1e-9)

	// 120 bpm: one beat every 500ms
	clk.Advance(125 * time.Millisecond)
	assert.InDelta(t, 0.25, s.Capture().PhaseAtTime(s.Now(), 1), 1e-9)

	clk.Advance(500 * time.Millisecond)
	assert.InDelta(t, 0.25, s.Capture().PhaseAtTime(s.Now(), 1), 1e-9)
	assert.InDelta(t, 1.25, s.Capture().PhaseAtTime(s.Now(), 4), 1e-9)
}

func TestSessionSetTempo(t *testing.T) {
	t.Run("beat is continuous across tempo changes", func(t *testing.T) {
		clk := newFakeClock()
		s := newSession(120, clk.Now)

		clk.Advance(750 * time.Millisecond) // 1.5 beats
		before := s.Capture().PhaseAtTime(s.Now(), 4)
		s.SetTempo(60)
		after := s.Capture().PhaseAtTime(s.Now(), 4)
		assert.InDelta(t, before, after, 1e-6)

		// 60 bpm: one beat per second
		clk.Advance(500 * time.Millisecond)
		assert.InDelta(t, 2.0, s.Capture().PhaseAtTime(s.Now(), 4), 1e-6)
	})

	t.Run("callback only on change", func(t *testing.T) {
		s := NewSession(120)
		var got []float64
		s.SetTempoCallback(func(bpm float64) { got = append(got, bpm) })

		s.SetTempo(120)
		s.SetTempo(130)
		s.SetTempo(130)
		s.SetTempo(5)
		assert.Equal(t, []float64{130, MinTempo}, got)
		assert.Equal(t, MinTempo, s.Capture().Tempo())
	})
}

func TestSessionSetIsPlaying(t *testing.T) {
	s := NewSession(120)
	var got []bool
	s.SetStartStopCallback(func(playing bool) { got = append(got, playing) })

	s.SetIsPlaying(false)
	s.SetIsPlaying(true)
	s.SetIsPlaying(true)
	s.SetIsPlaying(false)

	assert.Equal(t, []bool{true, false}, got)
	assert.False(t, s.Capture().IsPlaying())
}

func TestSessionSnapshotIsImmutable(t *testing.T) {
	clk := newFakeClock()
	s := newSession(120, clk.Now)
	state := s.Capture()

	s.SetTempo(240)
	s.SetIsPlaying(true)

	assert.Equal(t, 120.0, state.Tempo())
	assert.False(t, state.IsPlaying())
}

func TestSessionIgnoresEnable(t *testing.T) {
	clk := newFakeClock()
	s := newSession(120, clk.Now)

	s.Enable(false)
	clk.Advance(125 * time.Millisecond)
	assert.InDelta(t, 0.25, s.Capture().PhaseAtTime(s.Now(), 1), 1e-9)
}
