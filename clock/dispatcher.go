package clock

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"

	"go-midiclock/debug"
	"go-midiclock/midi"
	"go-midiclock/timeline"
)

// EventType identifies a timeline notification
type EventType int

const (
	TempoChanged EventType = iota
	PeersChanged
	StartStopChanged
)

func (t EventType) String() string {
	switch t {
	case TempoChanged:
		return "tempo"
	case PeersChanged:
		return "peers"
	case StartStopChanged:
		return "start/stop"
	}
	return "unknown"
}

// Event is a timeline notification
type Event struct {
	Type    EventType
	Tempo   float64
	Peers   int
	Playing bool
}

// Dispatcher receives timeline callbacks and handles them on its own
// goroutine. Posting never blocks the timeline: when the queue is full the
// notification is dropped.
type Dispatcher struct {
	outputs Broadcaster
	events  chan Event
	logger  *slog.Logger

	// Notify receives a value (non-blocking) after every handled event
	Notify chan struct{}

	tempo   atomic.Uint64 // float64 bits
	peers   atomic.Int64
	playing atomic.Bool
	skipped atomic.Uint64
}

// NewDispatcher creates a dispatcher broadcasting Start/Stop to outputs
func NewDispatcher(outputs Broadcaster, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outputs: outputs,
		events:  make(chan Event, 64),
		logger:  logger,
		Notify:  make(chan struct{}, 1),
	}
}

// Attach registers the dispatcher's callbacks on tl
func (d *Dispatcher) Attach(tl timeline.Timeline) {
	state := tl.Capture()
	d.storeTempo(state.Tempo())
	d.playing.Store(state.IsPlaying())

	tl.SetTempoCallback(func(bpm float64) {
		d.Post(Event{Type: TempoChanged, Tempo: bpm})
	})
	tl.SetNumPeersCallback(func(peers int) {
		d.Post(Event{Type: PeersChanged, Peers: peers})
	})
	tl.SetStartStopCallback(func(playing bool) {
		d.Post(Event{Type: StartStopChanged, Playing: playing})
	})
}

// Post queues ev without blocking. Reports false if it was dropped.
func (d *Dispatcher) Post(ev Event) bool {
	select {
	case d.events <- ev:
		return true
	default:
		debug.Log("dispatch", "queue full, dropped %s event", ev.Type)
		return false
	}
}

// Run handles queued events until ctx is cancelled (blocking - run in
// goroutine)
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.Handle(ev)
		}
	}
}

// Handle reacts to a single event
func (d *Dispatcher) Handle(ev Event) {
	switch ev.Type {
	case TempoChanged:
		d.storeTempo(ev.Tempo)
		d.logger.Info("tempo changed", "bpm", ev.Tempo)

	case PeersChanged:
		d.peers.Store(int64(ev.Peers))
		d.logger.Info("num peers changed", "peers", ev.Peers)

	case StartStopChanged:
		d.playing.Store(ev.Playing)
		msg := midi.StopMessage
		if ev.Playing {
			msg = midi.StartMessage
		}
		if !d.outputs.TryBroadcast(msg) {
			d.skipped.Add(1)
			debug.Log("dispatch", "%s skipped on contention", midi.MessageName(msg))
		}
		d.logger.Debug("start/stop changed", "playing", ev.Playing)
	}

	select {
	case d.Notify <- struct{}{}:
	default:
	}
}

// Skipped returns the number of Start/Stop broadcasts lost to contention
func (d *Dispatcher) Skipped() uint64 {
	return d.skipped.Load()
}

// Peers returns the last reported peer count
func (d *Dispatcher) Peers() int {
	return int(d.peers.Load())
}

// Playing returns the last reported start/stop state
func (d *Dispatcher) Playing() bool {
	return d.playing.Load()
}

// Tempo returns the last reported tempo
func (d *Dispatcher) Tempo() float64 {
	return math.Float64frombits(d.tempo.Load())
}

func (d *Dispatcher) storeTempo(bpm float64) {
	d.tempo.Store(math.Float64bits(bpm))
}
