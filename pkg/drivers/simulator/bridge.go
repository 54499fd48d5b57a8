package simulator

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"multicam/pkg/capture"
)

// Bridge is a simulated capture.DeviceBridge backed by an in-memory
// device fleet. It understands the shell commands the capture workflow
// issues: app launch and force-stop, shutter key presses, photo listing
// and removal, and the health-check echo. Pulled photos are served from
// a canned image payload.
type Bridge struct {
	image   []byte
	latency time.Duration
	timeout time.Duration
	logger  log.FieldLogger

	mu      sync.Mutex
	serials []string
	devices map[string]*simDevice
}

type simDevice struct {
	launched bool
	photos   []string
	shots    int
}

// NewBridge creates a simulator fleet with the given serials. Every
// pulled photo contains the image payload. The timeout bounds each
// simulated command, mirroring a real bridge's per-command budget.
func NewBridge(serials []string, image []byte, timeout time.Duration, logger log.FieldLogger) *Bridge {
	devices := make(map[string]*simDevice, len(serials))
	for _, serial := range serials {
		devices[serial] = &simDevice{}
	}
	return &Bridge{
		image:   image,
		timeout: timeout,
		logger:  logger,
		serials: slices.Clone(serials),
		devices: devices,
	}
}

// SetLatency adds an artificial delay to every simulated command.
func (b *Bridge) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d
}

func (b *Bridge) ListDevices(ctx context.Context) ([]string, error) {
	if err := b.wait(ctx, "devices"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.serials), nil
}

func (b *Bridge) RunShell(ctx context.Context, serial, command string, check bool) (string, error) {
	if err := b.wait(ctx, command); err != nil {
		if check {
			return "", err
		}
		return "", nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	device, ok := b.devices[serial]
	if !ok {
		if check {
			return "", &capture.BridgeError{Command: command, Detail: fmt.Sprintf("device %q not found", serial)}
		}
		return "", nil
	}

	b.logger.Debugf("[%s] shell: %s", serial, command)

	switch {
	case strings.HasPrefix(command, "am start -n "):
		device.launched = true
		return "Starting: Intent { cmp=" + strings.TrimPrefix(command, "am start -n ") + " }\n", nil

	case strings.HasPrefix(command, "am force-stop "):
		device.launched = false
		return "", nil

	case command == "input keyevent KEYCODE_VOLUME_DOWN":
		if device.launched {
			device.shots++
			photo := fmt.Sprintf("/sdcard/DCIM/Camera/IMG_%s_%04d.jpg", serial, device.shots)
			device.photos = append(device.photos, photo)
		}
		return "", nil

	case strings.HasPrefix(command, "ls -t "):
		if len(device.photos) == 0 {
			return "", nil
		}
		// Newest first, like ls -t.
		listing := slices.Clone(device.photos)
		slices.Reverse(listing)
		return strings.Join(listing, "\n") + "\n", nil

	case strings.HasPrefix(command, "rm -f "):
		target := strings.TrimPrefix(command, "rm -f ")
		device.photos = slices.DeleteFunc(device.photos, func(p string) bool { return p == target })
		return "", nil

	case strings.HasPrefix(command, "echo "):
		return strings.TrimPrefix(command, "echo ") + "\n", nil

	default:
		// Wake, menu, power, tap and mkdir have no observable output.
		return "", nil
	}
}

func (b *Bridge) PullFile(ctx context.Context, serial, remotePath, localPath string, check bool) error {
	fail := func(detail string) error {
		if check {
			return &capture.BridgeError{Command: "pull " + remotePath, Detail: detail}
		}
		return nil
	}

	if err := b.wait(ctx, "pull "+remotePath); err != nil {
		if check {
			return err
		}
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	device, ok := b.devices[serial]
	if !ok {
		return fail(fmt.Sprintf("device %q not found", serial))
	}
	if !slices.Contains(device.photos, remotePath) {
		return fail("remote file does not exist")
	}

	if err := os.WriteFile(localPath, b.image, 0o600); err != nil {
		return fail(err.Error())
	}
	return nil
}

// wait applies the simulated latency and per-command timeout.
func (b *Bridge) wait(ctx context.Context, command string) error {
	b.mu.Lock()
	latency := b.latency
	timeout := b.timeout
	b.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return &capture.BridgeError{Command: command, Detail: err.Error()}
	}
	return nil
}
