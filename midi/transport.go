package midi

import (
	"errors"
	"fmt"
	"time"

	"go-midiclock/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Output is an open, writable connection to one MIDI device.
// drivers.Out satisfies it.
type Output interface {
	Send(msg []byte) error
	Close() error
}

// Transport enumerates output ports and opens them by index
type Transport interface {
	// Ports returns the names of the currently visible outputs, by index.
	Ports() ([]string, error)
	// Open opens the output at index. id is the name Ports reported for it.
	Open(index int, id string) (Output, error)
}

// ErrEnumerateTimeout is returned when the driver did not list its ports in time
var ErrEnumerateTimeout = errors.New("midi: port enumeration timed out")

// PortTransport is the Transport backed by the registered gomidi driver
// (rtmididrv in the binaries).
type PortTransport struct {
	timeout time.Duration
}

// NewPortTransport creates a transport. Enumeration that takes longer than
// timeout is abandoned (CoreMIDI can hang).
func NewPortTransport(timeout time.Duration) *PortTransport {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PortTransport{timeout: timeout}
}

func (t *PortTransport) outPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(t.timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrEnumerateTimeout
	}
}

// Ports lists the output port names
func (t *PortTransport) Ports() ([]string, error) {
	outs, err := t.outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names, nil
}

// Open opens the output at index. If the port list shifted since Ports was
// called, the port is located by name instead.
func (t *PortTransport) Open(index int, id string) (Output, error) {
	outs, err := t.outPorts()
	if err != nil {
		return nil, err
	}

	var port drivers.Out
	if index >= 0 && index < len(outs) && outs[index].String() == id {
		port = outs[index]
	} else {
		for _, p := range outs {
			if p.String() == id {
				port = p
				break
			}
		}
	}
	if port == nil {
		return nil, fmt.Errorf("output %q not found", id)
	}

	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", id, err)
	}
	debug.Log("transport", "opened output %d: %s", port.Number(), id)
	return port, nil
}
