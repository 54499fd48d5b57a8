package capture

import (
	"context"
	"errors"
	"fmt"
)

// DeviceBridge is the shell/file-transfer channel used to control the
// devices. Implementations enforce their own per-command timeout; the
// context only carries caller-side cancellation.
type DeviceBridge interface {
	// ListDevices returns the serials of connected, authorized devices.
	ListDevices(ctx context.Context) ([]string, error)

	// RunShell runs a remote shell command and returns its stdout. When
	// check is true a non-zero exit or timeout fails with *BridgeError;
	// when false failures are swallowed and a best-effort result returned.
	RunShell(ctx context.Context, serial, command string, check bool) (string, error)

	// PullFile copies a remote file to a local path, with the same check
	// semantics as RunShell.
	PullFile(ctx context.Context, serial, remotePath, localPath string, check bool) error
}

var (
	// ErrNoDevices is returned when discovery finds zero devices but at
	// least one was required.
	ErrNoDevices = errors.New("no camera devices detected")

	// ErrDeviceNotReady is returned by Capture when the machine has not
	// been prepared.
	ErrDeviceNotReady = errors.New("device must be prepared before capture")

	// ErrNoPhoto is returned when the photo-listing poll exhausts its
	// attempts without finding a file.
	ErrNoPhoto = errors.New("no photo captured")
)

// BridgeError reports a failed required bridge operation.
type BridgeError struct {
	Command string
	Detail  string
}

func (e *BridgeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bridge command %q failed", e.Command)
	}
	return fmt.Sprintf("bridge command %q failed: %s", e.Command, e.Detail)
}
