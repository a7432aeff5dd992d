package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-midiclock/midi"
	"go-midiclock/timeline"
)

type fakeOutput struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (o *fakeOutput) Send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) received(b byte) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, msg := range o.sent {
		if bytes.Equal(msg, []byte{b}) {
			n++
		}
	}
	return n
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fakeTransport struct {
	mu      sync.Mutex
	names   []string
	outputs map[string]*fakeOutput
	failOn  string
}

func newFakeTransport(names ...string) *fakeTransport {
	return &fakeTransport{names: names, outputs: make(map[string]*fakeOutput)}
}

func (ft *fakeTransport) Ports() ([]string, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]string(nil), ft.names...), nil
}

func (ft *fakeTransport) Open(index int, id string) (midi.Output, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if id == ft.failOn {
		return nil, errors.New("port in use")
	}
	out := &fakeOutput{}
	ft.outputs[id] = out
	return out, nil
}

func (ft *fakeTransport) output(id string) *fakeOutput {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.outputs[id]
}

// enableRecorder records the Enable calls made on a session
type enableRecorder struct {
	*timeline.Session
	mu    sync.Mutex
	calls []bool
}

func (r *enableRecorder) Enable(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, enabled)
	r.Session.Enable(enabled)
}

func (r *enableRecorder) enableCalls() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServiceRun(t *testing.T) {
	session := timeline.NewSession(999)
	tl := &enableRecorder{Session: session}
	ft := newFakeTransport("A")
	svc := New(tl, ft, Options{PollInterval: 10 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(svc.Status().Devices) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []bool{true}, tl.enableCalls())

	out := ft.output("A")
	require.Eventually(t, func() bool { return out.received(0xF8) > 0 }, 2*time.Second, time.Millisecond)

	session.SetIsPlaying(true)
	require.Eventually(t, func() bool { return svc.Status().Playing }, 2*time.Second, time.Millisecond)
	// a start can be skipped under contention, never sent twice
	assert.LessOrEqual(t, out.received(0xFA), 1)

	session.SetTempo(200)
	require.Eventually(t, func() bool { return svc.Status().Tempo == 200 }, 2*time.Second, time.Millisecond)

	status := svc.Status()
	assert.Equal(t, []string{"A"}, status.Devices)
	assert.Positive(t, status.Pulses)
	assert.Equal(t, status.Skipped+uint64(out.received(0xFA)), uint64(1))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, out.isClosed())
	assert.Equal(t, []bool{true, false}, tl.enableCalls())
}

func TestServiceRunOpenFailure(t *testing.T) {
	ft := newFakeTransport("A", "B")
	ft.failOn = "B"
	svc := New(timeline.NewSession(120), ft, Options{PollInterval: 10 * time.Millisecond, Logger: quietLogger()})

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not fail")
	}

	var openErr *midi.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "B", openErr.ID)
	assert.True(t, ft.output("A").isClosed())
}

func TestServiceAccessors(t *testing.T) {
	session := timeline.NewSession(90)
	svc := New(session, newFakeTransport(), Options{})

	assert.Same(t, session, svc.Timeline())
	assert.NotNil(t, svc.Updates())
	assert.NotNil(t, svc.DeviceEvents())

	status := svc.Status()
	assert.Empty(t, status.Devices)
	assert.Zero(t, status.Pulses)
}
