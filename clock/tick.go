// Package clock turns a timeline's beat phase into a 24 PPQN MIDI clock.
//
// PulseLoop polls the timeline as fast as the host allows and broadcasts a
// clock pulse whenever the phase moves into a new 1/24-beat slot.
// Dispatcher reacts to timeline notifications, broadcasting Start and Stop.
// Both broadcast through the registry's non-blocking path: a message that
// meets contention is dropped, never queued.
package clock

import "math"

// PulsesPerBeat is the MIDI timing clock rate
const PulsesPerBeat = 24

// Quantum is the fraction of a beat between consecutive pulses
const Quantum = 1.0 / PulsesPerBeat

// noTick is the counter's initial index; no phase maps to it
const noTick = -1

// TickIndex returns the slot the phase falls into: floor(phase / quantum).
// For a phase in [0, 1) and the default quantum it is in [0, 23].
func TickIndex(phase, quantum float64) int {
	return int(math.Floor(phase / quantum))
}

// Counter tracks the last observed tick index
type Counter struct {
	index int
}

// NewCounter returns a counter whose first observation always ticks
func NewCounter() Counter {
	return Counter{index: noTick}
}

// Observe records the index for phase and reports whether it changed.
// The phase wraps every beat, so a decrease (23 -> 0) is a tick too.
func (c *Counter) Observe(phase float64) bool {
	idx := TickIndex(phase, Quantum)
	if idx == c.index {
		return false
	}
	c.index = idx
	return true
}

// Index returns the last observed index, or -1 before the first observation
func (c *Counter) Index() int {
	return c.index
}
