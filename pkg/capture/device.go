package capture

import (
	"context"
	"fmt"
)

// Device is one discovered camera device. Immutable after discovery.
type Device struct {
	Serial   string
	Position string
}

// PositionStrategy assigns a human-readable slot name to a device at
// discovery time. Index is the zero-based discovery position. An empty
// return leaves the device without a position label.
type PositionStrategy func(serial string, index int) string

// DefaultPositionStrategy labels devices "device_1", "device_2", ...
// in discovery order.
func DefaultPositionStrategy(_ string, index int) string {
	return fmt.Sprintf("device_%d", index+1)
}

// DeviceManager turns raw bridge enumeration into ordered, labeled devices.
type DeviceManager struct {
	bridge   DeviceBridge
	position PositionStrategy
}

// NewDeviceManager creates a manager over the given bridge. A nil strategy
// falls back to DefaultPositionStrategy.
func NewDeviceManager(bridge DeviceBridge, strategy PositionStrategy) *DeviceManager {
	if strategy == nil {
		strategy = DefaultPositionStrategy
	}
	return &DeviceManager{bridge: bridge, position: strategy}
}

// Discover lists devices through the bridge, preserving the bridge's
// order. Zero devices is a valid result; callers decide whether that is
// fatal. Bridge failures propagate unchanged.
func (m *DeviceManager) Discover(ctx context.Context) ([]Device, error) {
	serials, err := m.bridge.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(serials))
	for index, serial := range serials {
		devices = append(devices, Device{
			Serial:   serial,
			Position: m.position(serial, index),
		})
	}
	return devices, nil
}
