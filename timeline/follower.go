package timeline

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scgolang/osc"
	"golang.org/x/sync/errgroup"
)

// oscsync protocol constants.
// See http://github.com/scgolang/oscsync/README.md
const (
	AddressPulse    = "/sync/pulse"
	AddressSlaveAdd = "/sync/slave/add"

	// MasterPort is the listening port for the oscsync master.
	MasterPort = 5776

	// PulsesPerBar is the number of pulses in a bar (measure).
	PulsesPerBar = 96
	// PulsesPerBeat is the number of pulses in a beat.
	PulsesPerBeat = PulsesPerBar / 4
)

// silenceBars is how many bars without a pulse mean the master has stopped.
// The master only sends on bar boundaries and tempo changes.
const silenceBars = 2

// Follower is a Timeline that follows an oscsync master over UDP.
//
// The master broadcasts its absolute pulse count once per bar (and on every
// tempo change); between messages the beat is extrapolated from the last
// pulse at the master's tempo. While pulses arrive the master counts as the
// single peer and the timeline is playing; after silenceBars of silence it
// stops and the phase freezes.
type Follower struct {
	host string
	port int

	mu         sync.Mutex
	enabled    bool
	tempo      float64
	anchorBeat float64
	anchorAt   time.Time
	lastPulse  time.Time
	playing    bool
	peers      int
	frozenBeat float64
	cb         callbacks

	now func() time.Time
}

// NewFollower creates a follower for the master at host:port
func NewFollower(host string, port int, bpm float64) *Follower {
	if port == 0 {
		port = MasterPort
	}
	return &Follower{
		host:  host,
		port:  port,
		tempo: ClampTempo(bpm),
		now:   time.Now,
	}
}

// Enable joins or leaves the master's session. Pulses are ignored while
// disabled, and disabling a playing follower stops it like silence does.
func (f *Follower) Enable(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	if enabled || !f.playing {
		f.mu.Unlock()
		return
	}
	cb := f.stopLocked(f.now())
	f.mu.Unlock()

	notifyStopped(cb)
}

func (f *Follower) SetTempoCallback(fn func(bpm float64)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb.tempo = fn
}

func (f *Follower) SetNumPeersCallback(fn func(peers int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb.peers = fn
}

func (f *Follower) SetStartStopCallback(fn func(playing bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb.startStop = fn
}

func (f *Follower) Now() time.Time {
	return f.now()
}

func (f *Follower) Capture() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return followerState{
		tempo:      f.tempo,
		anchorBeat: f.anchorBeat,
		anchorAt:   f.anchorAt,
		playing:    f.playing,
		frozenBeat: f.frozenBeat,
	}
}

// Run connects to the master, announces this follower and serves pulses
// until ctx is cancelled. Pulses only count once Enable(true) is called.
func (f *Follower) Run(ctx context.Context) error {
	local, err := net.ResolveUDPAddr("udp", "0.0.0.0:0")
	if err != nil {
		return errors.Wrap(err, "creating listening address")
	}
	remote, err := net.ResolveUDPAddr("udp", net.JoinHostPort(f.host, strconv.Itoa(f.port)))
	if err != nil {
		return errors.Wrap(err, "resolving master address")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	conn, err := osc.DialUDPContext(gctx, "udp", local, remote)
	if err != nil {
		return errors.Wrap(err, "connecting to master")
	}

	g.Go(func() error {
		err := conn.Serve(1, osc.PatternMatching{
			AddressPulse: osc.Method(f.HandlePulse),
		})
		if gctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "serving pulses")
	})
	g.Go(func() error {
		f.watch(gctx)
		// unblocks Serve; the conn may already be closed with the context
		_ = conn.Close()
		return nil
	})

	if err := f.announce(conn); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	return g.Wait()
}

// announce registers this follower with the master
func (f *Follower) announce(conn *osc.UDPConn) error {
	laddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return errors.Errorf("unexpected local address %s", conn.LocalAddr())
	}
	err := conn.Send(osc.Message{
		Address: AddressSlaveAdd,
		Arguments: osc.Arguments{
			osc.String("127.0.0.1"),
			osc.Int(int32(laddr.Port)),
		},
	})
	return errors.Wrap(err, "sending add-slave message")
}

// watch stops the timeline when the master goes quiet
func (f *Follower) watch(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.checkSilence(f.now())
		}
	}
}

// HandlePulse handles a /sync/pulse message
func (f *Follower) HandlePulse(m osc.Message) error {
	tempo, count, err := parsePulse(m)
	if err != nil {
		return err
	}
	f.pulse(tempo, count, f.now())
	return nil
}

// parsePulse reads the (tempo, count) arguments of a pulse message
func parsePulse(m osc.Message) (float32, int32, error) {
	if expected, got := 2, len(m.Arguments); expected != got {
		return 0, 0, errors.Errorf("expected %d arguments, got %d", expected, got)
	}
	tempo, err := m.Arguments[0].ReadFloat32()
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading tempo")
	}
	count, err := m.Arguments[1].ReadInt32()
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading counter")
	}
	return tempo, count, nil
}

func (f *Follower) pulse(tempo float32, count int32, t time.Time) {
	bpm := ClampTempo(float64(tempo))

	f.mu.Lock()
	if !f.enabled {
		f.mu.Unlock()
		return
	}
	tempoChanged := bpm != f.tempo
	started := !f.playing
	peersChanged := f.peers != 1

	f.tempo = bpm
	f.anchorBeat = float64(count) / PulsesPerBeat
	f.anchorAt = t
	f.lastPulse = t
	f.playing = true
	f.peers = 1
	cb := f.cb
	f.mu.Unlock()

	if tempoChanged && cb.tempo != nil {
		cb.tempo(bpm)
	}
	if peersChanged && cb.peers != nil {
		cb.peers(1)
	}
	if started && cb.startStop != nil {
		cb.startStop(true)
	}
}

func (f *Follower) checkSilence(t time.Time) {
	f.mu.Lock()
	if !f.playing || t.Sub(f.lastPulse) <= durationOf(silenceBars*PulsesPerBar/PulsesPerBeat, f.tempo) {
		f.mu.Unlock()
		return
	}
	cb := f.stopLocked(t)
	f.mu.Unlock()

	notifyStopped(cb)
}

// stopLocked freezes the beat at t and drops the master as a peer. mu must
// be held; the returned callbacks are fired after unlocking.
func (f *Follower) stopLocked(t time.Time) callbacks {
	f.frozenBeat = f.anchorBeat + beatsIn(t.Sub(f.anchorAt), f.tempo)
	f.playing = false
	f.peers = 0
	return f.cb
}

func notifyStopped(cb callbacks) {
	if cb.peers != nil {
		cb.peers(0)
	}
	if cb.startStop != nil {
		cb.startStop(false)
	}
}

// followerState is the Snapshot of a Follower
type followerState struct {
	tempo      float64
	anchorBeat float64
	anchorAt   time.Time
	playing    bool
	frozenBeat float64
}

func (st followerState) PhaseAtTime(t time.Time, quantum float64) float64 {
	if !st.playing {
		return Phase(st.frozenBeat, quantum)
	}
	return Phase(st.anchorBeat+beatsIn(t.Sub(st.anchorAt), st.tempo), quantum)
}

func (st followerState) Tempo() float64 {
	return st.tempo
}

func (st followerState) IsPlaying() bool {
	return st.playing
}
