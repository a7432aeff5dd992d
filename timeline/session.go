package timeline

import (
	"sync"
	"time"
)

// Session is a local, single-peer timeline. The beat advances with wall
// clock time at the session tempo; tempo changes keep the beat continuous.
type Session struct {
	mu      sync.Mutex
	tempo   float64
	origin  time.Time // time of beat 0 at the current tempo
	playing bool
	cb      callbacks

	now func() time.Time
}

// NewSession creates a stopped session at bpm
func NewSession(bpm float64) *Session {
	return newSession(bpm, time.Now)
}

func newSession(bpm float64, now func() time.Time) *Session {
	return &Session{
		tempo:  ClampTempo(bpm),
		origin: now(),
		now:    now,
	}
}

// Enable does nothing: a local session has no one to join and always runs.
func (s *Session) Enable(bool) {}

func (s *Session) SetTempoCallback(fn func(bpm float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.tempo = fn
}

func (s *Session) SetNumPeersCallback(fn func(peers int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.peers = fn
}

func (s *Session) SetStartStopCallback(fn func(playing bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.startStop = fn
}

// SetTempo changes the tempo, keeping the current beat position
func (s *Session) SetTempo(bpm float64) {
	bpm = ClampTempo(bpm)

	s.mu.Lock()
	if bpm == s.tempo {
		s.mu.Unlock()
		return
	}
	t := s.now()
	beat := beatsIn(t.Sub(s.origin), s.tempo)
	s.tempo = bpm
	s.origin = t.Add(-durationOf(beat, bpm))
	fn := s.cb.tempo
	s.mu.Unlock()

	if fn != nil {
		fn(bpm)
	}
}

// SetIsPlaying changes the start/stop state
func (s *Session) SetIsPlaying(playing bool) {
	s.mu.Lock()
	if playing == s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = playing
	fn := s.cb.startStop
	s.mu.Unlock()

	if fn != nil {
		fn(playing)
	}
}

func (s *Session) Capture() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionState{
		tempo:   s.tempo,
		origin:  s.origin,
		playing: s.playing,
	}
}

func (s *Session) Now() time.Time {
	return s.now()
}

// sessionState is the Snapshot of a Session
type sessionState struct {
	tempo   float64
	origin  time.Time
	playing bool
}

func (st sessionState) PhaseAtTime(t time.Time, quantum float64) float64 {
	return Phase(beatsIn(t.Sub(st.origin), st.tempo), quantum)
}

func (st sessionState) Tempo() float64 {
	return st.tempo
}

func (st sessionState) IsPlaying() bool {
	return st.playing
}
