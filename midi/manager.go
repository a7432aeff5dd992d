package midi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go-midiclock/debug"
)

// DeviceEvent is emitted when an output is attached
type DeviceEvent struct {
	Type  DeviceEventType
	ID    string
	Index int
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
)

// DeviceManager handles hot-plug detection of MIDI outputs. Newly visible
// ports are opened and appended to the registry; nothing is ever detached.
type DeviceManager struct {
	transport Transport
	registry  *Registry
	events    chan DeviceEvent
	pollRate  time.Duration
	logger    *slog.Logger
}

// NewDeviceManager creates a device manager feeding registry
func NewDeviceManager(transport Transport, registry *Registry, pollRate time.Duration, logger *slog.Logger) *DeviceManager {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceManager{
		transport: transport,
		registry:  registry,
		events:    make(chan DeviceEvent, 16),
		pollRate:  pollRate,
		logger:    logger,
	}
}

// Events returns a channel of attach events. Events are dropped when nobody
// keeps up with it.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Run starts the polling loop (blocking - run in goroutine). It returns nil
// when ctx is cancelled and an *OpenError as soon as a port fails to open.
func (dm *DeviceManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	if err := dm.Scan(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dm.Scan(); err != nil {
				return err
			}
		}
	}
}

// Scan enumerates the outputs once and attaches any that are not yet
// registered.
func (dm *DeviceManager) Scan() error {
	names, err := dm.transport.Ports()
	if errors.Is(err, ErrEnumerateTimeout) {
		// driver is hung - skip this scan
		debug.Log("scan", "enumeration timed out, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	for i, id := range names {
		if dm.registry.Contains(id) {
			continue
		}

		out, err := dm.transport.Open(i, id)
		if err != nil {
			return &OpenError{ID: id, Index: i, Err: err}
		}
		dm.registry.Append(id, out)

		dm.logger.Info("opened port", "port", id)
		select {
		case dm.events <- DeviceEvent{Type: DeviceConnected, ID: id, Index: i}:
		default:
		}
	}
	return nil
}
