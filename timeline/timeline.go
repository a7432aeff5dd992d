// Package timeline provides the shared musical timeline the clock follows:
// a beat phase that advances with tempo, a peer count, and a start/stop
// state, plus callbacks fired when tempo, peers or start/stop change.
//
// Two sources are provided. Session is a local, single-peer timeline.
// Follower tracks an oscsync master on the network.
package timeline

import (
	"context"
	"math"
	"time"
)

// Timeline is a source of shared musical time.
//
// Callbacks may be invoked from any goroutine and must not block.
type Timeline interface {
	// Enable joins (true) or leaves (false) the shared session. Timelines
	// without a network, like Session, ignore it.
	Enable(enabled bool)
	SetTempoCallback(fn func(bpm float64))
	SetNumPeersCallback(fn func(peers int))
	SetStartStopCallback(fn func(playing bool))

	// Capture returns an immutable snapshot of the current state.
	Capture() Snapshot
	// Now returns the timeline clock's current time.
	Now() time.Time
}

// Snapshot is a point-in-time capture of a timeline
type Snapshot interface {
	// PhaseAtTime returns the position within a repeating cycle of quantum
	// beats at t, in [0, quantum).
	PhaseAtTime(t time.Time, quantum float64) float64
	Tempo() float64
	IsPlaying() bool
}

// Runner is implemented by timelines that need their own goroutine
type Runner interface {
	Run(ctx context.Context) error
}

// Controller is implemented by timelines that can be driven locally
type Controller interface {
	SetTempo(bpm float64)
	SetIsPlaying(playing bool)
}

// Tempo limits, as enforced by Ableton Link
const (
	MinTempo = 20.0
	MaxTempo = 999.0
)

// ClampTempo limits bpm to [MinTempo, MaxTempo]
func ClampTempo(bpm float64) float64 {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

// Phase wraps beats into [0, quantum)
func Phase(beats, quantum float64) float64 {
	if quantum <= 0 {
		return 0
	}
	p := math.Mod(beats, quantum)
	if p < 0 {
		p += quantum
	}
	return p
}

// beatsIn converts a duration to beats at bpm
func beatsIn(d time.Duration, bpm float64) float64 {
	return d.Seconds() * bpm / 60
}

// durationOf converts beats at bpm to a duration
func durationOf(beats, bpm float64) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Duration(beats * 60 / bpm * float64(time.Second))
}

// callbacks holds the registered notification funcs. Guarded by the owner's
// mutex; funcs are copied out and invoked without it.
type callbacks struct {
	tempo     func(bpm float64)
	peers     func(peers int)
	startStop func(playing bool)
}
