package clock

import (
	"runtime"
	"sync/atomic"

	"go-midiclock/debug"
	"go-midiclock/midi"
	"go-midiclock/timeline"
)

// Broadcaster sends a message to every registered output without blocking.
// It reports false when the message was skipped.
type Broadcaster interface {
	TryBroadcast(msg []byte) bool
}

// PulseLoop emits a clock pulse every 1/24 beat of the timeline.
//
// Run spins without sleeping until Stop, checking the stop flag once per
// iteration.
type PulseLoop struct {
	timeline timeline.Timeline
	outputs  Broadcaster
	counter  Counter

	running atomic.Bool
	done    chan struct{}

	pulses  atomic.Uint64
	dropped atomic.Uint64
}

// NewPulseLoop creates a running loop. Call Run to start polling.
func NewPulseLoop(tl timeline.Timeline, outputs Broadcaster) *PulseLoop {
	l := &PulseLoop{
		timeline: tl,
		outputs:  outputs,
		counter:  NewCounter(),
		done:     make(chan struct{}),
	}
	l.running.Store(true)
	return l
}

// Run polls the timeline until Stop is called (blocking - run in goroutine).
// It must be called at most once.
func (l *PulseLoop) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	for l.running.Load() {
		l.Step()
	}
}

// Step runs one iteration: capture, convert, and broadcast on a new index.
// Reports whether the index changed.
func (l *PulseLoop) Step() bool {
	state := l.timeline.Capture()
	phase := state.PhaseAtTime(l.timeline.Now(), 1.0)

	if !l.counter.Observe(phase) {
		return false
	}

	if l.outputs.TryBroadcast(midi.ClockMessage) {
		n := l.pulses.Add(1)
		if n%(PulsesPerBeat*4*16) == 0 {
			debug.Log("pulse", "sent=%d dropped=%d tempo=%.2f", n, l.dropped.Load(), state.Tempo())
		}
	} else {
		l.dropped.Add(1)
	}
	return true
}

// Stop asks the loop to exit after its current iteration. It does not wait.
func (l *PulseLoop) Stop() {
	l.running.Store(false)
}

// Done is closed when Run returns
func (l *PulseLoop) Done() <-chan struct{} {
	return l.done
}

// Pulses returns the number of clock pulses broadcast
func (l *PulseLoop) Pulses() uint64 {
	return l.pulses.Load()
}

// Dropped returns the number of clock pulses skipped on contention
func (l *PulseLoop) Dropped() uint64 {
	return l.dropped.Load()
}
