package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// System real-time status bytes sent by the clock
const (
	Clock uint8 = 0xF8
	Start uint8 = 0xFA
	Stop  uint8 = 0xFC
)

// Single-byte messages broadcast to every output. They are shared and must
// not be mutated.
var (
	ClockMessage = []byte(gomidi.TimingClock())
	StartMessage = []byte(gomidi.Start())
	StopMessage  = []byte(gomidi.Stop())
)

// MessageName returns a short name for a real-time message (for logs)
func MessageName(msg []byte) string {
	if len(msg) != 1 {
		return "unknown"
	}
	switch msg[0] {
	case Clock:
		return "clock"
	case Start:
		return "start"
	case Stop:
		return "stop"
	}
	return "unknown"
}
