package capture

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listBridge struct {
	serials   []string
	err       error
	listCalls int
}

func (b *listBridge) ListDevices(ctx context.Context) ([]string, error) {
	b.listCalls++
	if b.err != nil {
		return nil, b.err
	}
	return append([]string(nil), b.serials...), nil
}

func (b *listBridge) RunShell(ctx context.Context, serial, command string, check bool) (string, error) {
	return "", nil
}

func (b *listBridge) PullFile(ctx context.Context, serial, remotePath, localPath string, check bool) error {
	return nil
}

func TestDiscoverAssignsDefaultPositions(t *testing.T) {
	bridge := &listBridge{serials: []string{"C3", "A1", "B2"}}
	manager := NewDeviceManager(bridge, nil)

	devices, err := manager.Discover(context.Background())

	require.NoError(t, err)
	require.Len(t, devices, 3)
	// Bridge order is preserved, labels are 1-based.
	assert.Equal(t, Device{Serial: "C3", Position: "device_1"}, devices[0])
	assert.Equal(t, Device{Serial: "A1", Position: "device_2"}, devices[1])
	assert.Equal(t, Device{Serial: "B2", Position: "device_3"}, devices[2])
}

func TestDiscoverCustomStrategy(t *testing.T) {
	bridge := &listBridge{serials: []string{"X", "Y"}}
	strategy := func(serial string, index int) string {
		return fmt.Sprintf("slot-%s-%d", serial, index)
	}
	manager := NewDeviceManager(bridge, strategy)

	devices, err := manager.Discover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "slot-X-0", devices[0].Position)
	assert.Equal(t, "slot-Y-1", devices[1].Position)
}

func TestDiscoverEmptyIsNotAnError(t *testing.T) {
	bridge := &listBridge{}
	manager := NewDeviceManager(bridge, nil)

	devices, err := manager.Discover(context.Background())

	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDiscoverPropagatesBridgeFailure(t *testing.T) {
	wantErr := &BridgeError{Command: "devices", Detail: "transport down"}
	bridge := &listBridge{err: wantErr}
	manager := NewDeviceManager(bridge, nil)

	_, err := manager.Discover(context.Background())

	var bridgeErr *BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, wantErr, bridgeErr)
}
