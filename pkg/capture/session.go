package capture

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// StateMachine is the per-device workflow the session fans out over.
// *Machine implements it; tests substitute stubs.
type StateMachine interface {
	Prepare(ctx context.Context) error
	Capture(ctx context.Context) (Artifact, error)
}

// MachineFactory builds the state machine for one discovered device.
type MachineFactory func(device Device) StateMachine

// Session coordinates an arbitrary set of state machines produced by the
// factory, providing an all-or-nothing two-phase API. One device's
// failure fails the whole operation and cancels the siblings' context,
// so in-flight work on other devices stops at its next suspension point.
type Session struct {
	manager *DeviceManager
	factory MachineFactory
}

// NewSession creates a session over the given manager and factory.
func NewSession(manager *DeviceManager, factory MachineFactory) *Session {
	return &Session{manager: manager, factory: factory}
}

// Discover lists the currently attached devices.
func (s *Session) Discover(ctx context.Context) ([]Device, error) {
	return s.manager.Discover(ctx)
}

// PrepareAll discovers devices, builds one state machine per device and
// prepares them all concurrently. Machines are returned only on full
// success, in discovery order. Zero discovered devices is an error; no
// machines are constructed in that case.
func (s *Session) PrepareAll(ctx context.Context) ([]StateMachine, error) {
	devices, err := s.manager.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	machines := make([]StateMachine, len(devices))
	for i, device := range devices {
		machines[i] = s.factory(device)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, machine := range machines {
		g.Go(func() error {
			return machine.Prepare(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return machines, nil
}

// CaptureAll captures on all given machines concurrently and returns the
// artifacts in machine order, not completion order. A nil machines slice
// collapses prepare and capture into one call with a single discovery.
// A single capture failure aborts the whole operation; there are no
// retries and no partial results.
func (s *Session) CaptureAll(ctx context.Context, machines []StateMachine) ([]Artifact, error) {
	if machines == nil {
		var err error
		machines, err = s.PrepareAll(ctx)
		if err != nil {
			return nil, err
		}
	}

	artifacts := make([]Artifact, len(machines))
	g, gctx := errgroup.WithContext(ctx)
	for i, machine := range machines {
		g.Go(func() error {
			artifact, err := machine.Capture(gctx)
			if err != nil {
				return err
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}
