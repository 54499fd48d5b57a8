package capture

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"multicam/pkg/config"
)

const (
	photoPollAttempts = 20
	photoPollInterval = 300 * time.Millisecond

	// Short settle pause between the wake and menu key presses.
	keySettleDelay = 100 * time.Millisecond
)

// Artifact is the output of one successful capture: device identity plus
// raw image bytes. Ownership transfers to the caller on return.
type Artifact struct {
	Serial     string
	Position   string
	ImageBytes []byte
}

// Machine drives exactly one physical device through the two-phase
// capture workflow. It owns no shared state and is not safe for
// concurrent use; the session runs one goroutine per machine.
type Machine struct {
	serial   string
	position string
	bridge   DeviceBridge
	defaults config.CaptureDefaults
	logger   log.FieldLogger

	// SkipZoom disables the zoom tap during Prepare. Set before the
	// first Prepare call.
	SkipZoom bool

	phase        CapturePhase
	pollInterval time.Duration
}

// NewMachine creates a state machine for the given device. The defaults
// value is shared read-only across all machines of a session.
func NewMachine(bridge DeviceBridge, defaults config.CaptureDefaults, device Device, logger log.FieldLogger) *Machine {
	if logger == nil {
		logger = log.WithField("device", device.Serial)
	}
	return &Machine{
		serial:       device.Serial,
		position:     device.Position,
		bridge:       bridge,
		defaults:     defaults,
		logger:       logger,
		phase:        PhaseIdle,
		pollInterval: photoPollInterval,
	}
}

// Serial returns the bridge-assigned device identifier.
func (m *Machine) Serial() string { return m.serial }

// Position returns the device's position label, if any.
func (m *Machine) Position() string { return m.position }

// Phase returns the machine's current workflow phase.
func (m *Machine) Phase() CapturePhase { return m.phase }

// Prepare wakes the device and brings the camera app to a ready state.
// It is idempotent: when the machine is already preparing or prepared it
// returns immediately, and it only proceeds from the idle and complete
// phases, so a device can be re-primed after a successful cycle. On
// failure the phase moves to error.
func (m *Machine) Prepare(ctx context.Context) error {
	if m.phase != PhaseIdle && m.phase != PhaseComplete {
		return nil
	}
	m.phase = PhasePreparing
	m.logger.Debug("Preparing device")

	if err := m.prepare(ctx); err != nil {
		m.phase = PhaseError
		m.logger.Errorf("Prepare failed: %v", err)
		return err
	}

	m.phase = PhasePrepared
	m.logger.Debug("Device prepared")
	return nil
}

func (m *Machine) prepare(ctx context.Context) error {
	// Wake-up sequence and photo directory are best-effort.
	m.bestEffortShell(ctx, "input keyevent KEYCODE_WAKEUP")
	if err := sleep(ctx, keySettleDelay); err != nil {
		return err
	}
	m.bestEffortShell(ctx, "input keyevent KEYCODE_MENU")
	if err := sleep(ctx, keySettleDelay); err != nil {
		return err
	}
	m.bestEffortShell(ctx, "mkdir -p "+m.defaults.PhotoLocation)
	m.bestEffortShell(ctx, "am force-stop "+m.defaults.Package)

	component := m.defaults.Package + "/" + m.defaults.Activity
	if _, err := m.bridge.RunShell(ctx, m.serial, "am start -n "+component, true); err != nil {
		return err
	}
	if err := sleep(ctx, m.defaults.Delays.CameraOpenDelay()); err != nil {
		return err
	}

	if !m.SkipZoom {
		point := m.defaults.ZoomPoint
		tap := fmt.Sprintf("input tap %d %d", point.X, point.Y)
		if _, err := m.bridge.RunShell(ctx, m.serial, tap, true); err != nil {
			return err
		}
		if err := sleep(ctx, m.defaults.Delays.ZoomDelay()); err != nil {
			return err
		}
	}
	return nil
}

// Capture triggers the shutter, waits for the photo to land, pulls it
// off the device and returns it as an artifact. It requires a prepared
// machine. The local temporary file holding the pulled image lives
// exactly as long as this call and is removed on every exit path.
func (m *Machine) Capture(ctx context.Context) (Artifact, error) {
	if m.phase != PhasePrepared {
		return Artifact{}, fmt.Errorf("%w (phase %s)", ErrDeviceNotReady, m.phase)
	}
	m.phase = PhaseCapturing
	m.logger.Debug("Capturing photo")

	tmp, err := os.CreateTemp("", m.serial+"_*.jpg")
	if err != nil {
		m.phase = PhaseError
		return Artifact{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer m.cleanup(ctx, tmpPath)

	artifact, err := m.capture(ctx, tmpPath)
	if err != nil {
		m.phase = PhaseError
		m.logger.Errorf("Capture failed: %v", err)
		return Artifact{}, err
	}

	m.phase = PhaseComplete
	m.logger.Debugf("Captured %d bytes", len(artifact.ImageBytes))
	return artifact, nil
}

func (m *Machine) capture(ctx context.Context, tmpPath string) (Artifact, error) {
	if _, err := m.bridge.RunShell(ctx, m.serial, "input keyevent KEYCODE_VOLUME_DOWN", true); err != nil {
		return Artifact{}, err
	}

	settle := m.defaults.Delays.PhotoCaptureDelay() + m.defaults.Delays.PhotoSaveDelay()
	if err := sleep(ctx, settle); err != nil {
		return Artifact{}, err
	}

	remotePhoto, err := m.latestPhoto(ctx)
	if err != nil {
		return Artifact{}, err
	}

	if err := m.bridge.PullFile(ctx, m.serial, remotePhoto, tmpPath, true); err != nil {
		return Artifact{}, err
	}
	m.bestEffortShell(ctx, "rm -f "+remotePhoto)

	imageBytes, err := os.ReadFile(tmpPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("read pulled photo: %w", err)
	}

	return Artifact{
		Serial:     m.serial,
		Position:   m.position,
		ImageBytes: imageBytes,
	}, nil
}

// latestPhoto polls for the most recently created photo in the configured
// location, bounded to photoPollAttempts tries.
func (m *Machine) latestPhoto(ctx context.Context) (string, error) {
	command := fmt.Sprintf("ls -t %s/*.jpg 2>/dev/null | head -1", m.defaults.PhotoLocation)
	for attempt := 0; attempt < photoPollAttempts; attempt++ {
		output, _ := m.bridge.RunShell(ctx, m.serial, command, false)
		if line := firstLine(output); line != "" {
			return line, nil
		}
		if err := sleep(ctx, m.pollInterval); err != nil {
			return "", err
		}
	}
	return "", ErrNoPhoto
}

// cleanup runs after every Capture call, successful or not: stop the
// camera app, put the device back to sleep and remove the temp file. The
// shell calls are best-effort and must proceed even when the caller's
// context is already canceled.
func (m *Machine) cleanup(ctx context.Context, tmpPath string) {
	ctx = context.WithoutCancel(ctx)
	m.bestEffortShell(ctx, "am force-stop "+m.defaults.Package)
	m.bestEffortShell(ctx, "input keyevent KEYCODE_POWER")

	// Tighten permissions before removal; the file may hold image data.
	if err := os.Chmod(tmpPath, 0o600); err != nil && !os.IsNotExist(err) {
		m.logger.Debugf("Chmod temp file: %v", err)
	}
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warnf("Failed to remove temp file %s: %v", tmpPath, err)
	}
}

func (m *Machine) bestEffortShell(ctx context.Context, command string) {
	if _, err := m.bridge.RunShell(ctx, m.serial, command, false); err != nil {
		m.logger.Debugf("Best-effort command %q: %v", command, err)
	}
}

func firstLine(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	if i := strings.IndexByte(output, '\n'); i >= 0 {
		output = output[:i]
	}
	return strings.TrimSpace(output)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
