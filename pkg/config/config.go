package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRequestTimeout = 30.0
	defaultCommandTimeout = 15.0
)

// Remote paths end up inside shell commands, so only a conservative
// character set is allowed.
var safeRemotePath = regexp.MustCompile(`^[\w./-]+$`)

// ZoomPoint is the screen coordinate tapped to set camera zoom.
type ZoomPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// DelaySettings holds the pacing delays of the capture workflow, in seconds.
type DelaySettings struct {
	CameraOpen   float64 `yaml:"camera_open"`
	Zoom         float64 `yaml:"zoom"`
	PhotoCapture float64 `yaml:"photo_capture"`
	PhotoSave    float64 `yaml:"photo_save"`
}

// CameraOpenDelay returns the wait after launching the camera app.
func (d DelaySettings) CameraOpenDelay() time.Duration {
	return seconds(d.CameraOpen)
}

// ZoomDelay returns the wait after tapping the zoom point.
func (d DelaySettings) ZoomDelay() time.Duration {
	return seconds(d.Zoom)
}

// PhotoCaptureDelay returns the wait after triggering the shutter.
func (d DelaySettings) PhotoCaptureDelay() time.Duration {
	return seconds(d.PhotoCapture)
}

// PhotoSaveDelay returns the extra wait for the device to flush the photo.
func (d DelaySettings) PhotoSaveDelay() time.Duration {
	return seconds(d.PhotoSave)
}

// CaptureDefaults describes how to drive the camera app on every device.
// One instance is shared read-only by all state machines in a session.
type CaptureDefaults struct {
	Package       string        `yaml:"package"`
	Activity      string        `yaml:"activity"`
	PhotoLocation string        `yaml:"photo_location"`
	ZoomPoint     ZoomPoint     `yaml:"zoom_point"`
	Delays        DelaySettings `yaml:"delays"`
}

// MQTTConfig configures the optional capture-event publisher.
// An empty broker disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// Settings is the validated service configuration.
type Settings struct {
	Defaults CaptureDefaults `yaml:"camera_defaults"`

	// RequestTimeoutSeconds bounds one whole capture request.
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`
	// CommandTimeoutSeconds bounds a single bridge command.
	CommandTimeoutSeconds float64 `yaml:"command_timeout_seconds"`

	HistoryPath string     `yaml:"history_path"`
	MQTT        MQTTConfig `yaml:"mqtt"`
}

// RequestTimeout returns the per-request deadline.
func (s *Settings) RequestTimeout() time.Duration {
	return seconds(s.RequestTimeoutSeconds)
}

// CommandTimeout returns the per-command deadline handed to the device bridge.
func (s *Settings) CommandTimeout() time.Duration {
	return seconds(s.CommandTimeoutSeconds)
}

type fileRoot struct {
	Settings Settings `yaml:"settings"`
}

// Load reads and validates the YAML configuration file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	settings := root.Settings
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Settings) validate() error {
	d := &s.Defaults
	d.Package = strings.TrimSpace(d.Package)
	d.Activity = strings.TrimSpace(d.Activity)
	d.PhotoLocation = strings.TrimSpace(d.PhotoLocation)

	if d.Package == "" {
		return fmt.Errorf("camera_defaults.package is required")
	}
	if d.Activity == "" {
		return fmt.Errorf("camera_defaults.activity is required")
	}
	if err := validateRemotePath(d.PhotoLocation); err != nil {
		return fmt.Errorf("camera_defaults.photo_location: %w", err)
	}

	delays := map[string]float64{
		"camera_open":   d.Delays.CameraOpen,
		"zoom":          d.Delays.Zoom,
		"photo_capture": d.Delays.PhotoCapture,
		"photo_save":    d.Delays.PhotoSave,
	}
	for name, value := range delays {
		if value < 0 {
			return fmt.Errorf("camera_defaults.delays.%s must be >= 0, got %v", name, value)
		}
	}

	if s.RequestTimeoutSeconds == 0 {
		s.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if s.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must be > 0, got %v", s.RequestTimeoutSeconds)
	}
	if s.CommandTimeoutSeconds == 0 {
		s.CommandTimeoutSeconds = defaultCommandTimeout
	}
	if s.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("command_timeout_seconds must be > 0, got %v", s.CommandTimeoutSeconds)
	}

	return nil
}

func validateRemotePath(path string) error {
	if path == "" {
		return fmt.Errorf("value is required")
	}
	if !safeRemotePath.MatchString(path) {
		return fmt.Errorf("only letters, numbers, dots, slashes, underscores and hyphens are allowed")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("parent directory segments are not allowed")
		}
	}
	if strings.HasPrefix(path, "-") {
		return fmt.Errorf("value cannot start with '-'")
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
