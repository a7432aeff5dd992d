// Package service wires the timeline, the device registry, discovery, the
// pulse loop and the callback dispatcher into one supervised unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"go-midiclock/clock"
	"go-midiclock/midi"
	"go-midiclock/timeline"
)

// Options configures a Service
type Options struct {
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Status is a point-in-time view for observers
type Status struct {
	Tempo   float64
	Peers   int
	Playing bool
	Devices []string
	Pulses  uint64
	Dropped uint64
	Skipped uint64
}

// Service owns the registry and everything that touches it
type Service struct {
	timeline   timeline.Timeline
	registry   *midi.Registry
	devices    *midi.DeviceManager
	loop       *clock.PulseLoop
	dispatcher *clock.Dispatcher
	logger     *slog.Logger
}

// New creates a service reading tl and writing to outputs found on transport
func New(tl timeline.Timeline, transport midi.Transport, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := midi.NewRegistry()
	return &Service{
		timeline:   tl,
		registry:   registry,
		devices:    midi.NewDeviceManager(transport, registry, opts.PollInterval, logger),
		loop:       clock.NewPulseLoop(tl, registry),
		dispatcher: clock.NewDispatcher(registry, logger),
		logger:     logger,
	}
}

// Run runs until ctx is cancelled or a component fails. Discovery errors
// (an *midi.OpenError when a port cannot be opened) are returned as is.
// Every output is closed before Run returns.
func (s *Service) Run(ctx context.Context) (err error) {
	s.dispatcher.Attach(s.timeline)
	s.timeline.Enable(true)
	s.logger.Info("midiclock started")

	defer func() {
		s.timeline.Enable(false)
		if cerr := s.registry.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing outputs: %w", cerr))
		}
		s.logger.Info("midiclock stopped")
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.devices.Run(gctx)
	})
	g.Go(func() error {
		return s.dispatcher.Run(gctx)
	})
	if r, ok := s.timeline.(timeline.Runner); ok {
		g.Go(func() error {
			return r.Run(gctx)
		})
	}
	g.Go(func() error {
		go func() {
			select {
			case <-gctx.Done():
				s.loop.Stop()
			case <-s.loop.Done():
			}
		}()
		s.loop.Run()
		return nil
	})

	return g.Wait()
}

// Status returns counters and state without contending with the loop
func (s *Service) Status() Status {
	return Status{
		Tempo:   s.dispatcher.Tempo(),
		Peers:   s.dispatcher.Peers(),
		Playing: s.dispatcher.Playing(),
		Devices: s.registry.IDs(),
		Pulses:  s.loop.Pulses(),
		Dropped: s.loop.Dropped(),
		Skipped: s.dispatcher.Skipped(),
	}
}

// Updates signals after every handled timeline event
func (s *Service) Updates() <-chan struct{} {
	return s.dispatcher.Notify
}

// DeviceEvents reports attached outputs
func (s *Service) DeviceEvents() <-chan midi.DeviceEvent {
	return s.devices.Events()
}

// Timeline returns the timeline the service follows
func (s *Service) Timeline() timeline.Timeline {
	return s.timeline
}
