package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
settings:
  camera_defaults:
    package: com.camera.app
    activity: .MainActivity
    photo_location: /sdcard/DCIM/Camera
    zoom_point:
      x: 540
      y: 960
    delays:
      camera_open: 2.5
      zoom: 1.0
      photo_capture: 0.5
      photo_save: 1.5
  request_timeout_seconds: 45
  command_timeout_seconds: 10
  history_path: captures.db
  mqtt:
    broker: tcp://localhost:1883
    topic: cameras/events
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	settings, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "com.camera.app", settings.Defaults.Package)
	assert.Equal(t, ".MainActivity", settings.Defaults.Activity)
	assert.Equal(t, "/sdcard/DCIM/Camera", settings.Defaults.PhotoLocation)
	assert.Equal(t, ZoomPoint{X: 540, Y: 960}, settings.Defaults.ZoomPoint)

	assert.Equal(t, 2500*time.Millisecond, settings.Defaults.Delays.CameraOpenDelay())
	assert.Equal(t, time.Second, settings.Defaults.Delays.ZoomDelay())
	assert.Equal(t, 500*time.Millisecond, settings.Defaults.Delays.PhotoCaptureDelay())
	assert.Equal(t, 1500*time.Millisecond, settings.Defaults.Delays.PhotoSaveDelay())

	assert.Equal(t, 45*time.Second, settings.RequestTimeout())
	assert.Equal(t, 10*time.Second, settings.CommandTimeout())
	assert.Equal(t, "captures.db", settings.HistoryPath)
	assert.Equal(t, "tcp://localhost:1883", settings.MQTT.Broker)
	assert.Equal(t, "cameras/events", settings.MQTT.Topic)
}

func TestLoadAppliesTimeoutDefaults(t *testing.T) {
	settings, err := Load(writeConfig(t, `
settings:
  camera_defaults:
    package: com.camera.app
    activity: .Main
    photo_location: /sdcard/DCIM
`))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, settings.RequestTimeout())
	assert.Equal(t, 15*time.Second, settings.CommandTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		errMatch string
	}{
		{
			name:     "missing package",
			content:  "settings:\n  camera_defaults:\n    activity: .Main\n    photo_location: /sdcard/DCIM\n",
			errMatch: "package",
		},
		{
			name:     "missing activity",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    photo_location: /sdcard/DCIM\n",
			errMatch: "activity",
		},
		{
			name:     "photo location with shell metacharacters",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    activity: .Main\n    photo_location: \"/sdcard;rm -rf /\"\n",
			errMatch: "photo_location",
		},
		{
			name:     "photo location with parent traversal",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    activity: .Main\n    photo_location: /sdcard/../etc\n",
			errMatch: "parent directory",
		},
		{
			name:     "photo location looks like a flag",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    activity: .Main\n    photo_location: \"-rf\"\n",
			errMatch: "start with",
		},
		{
			name:     "negative delay",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    activity: .Main\n    photo_location: /sdcard/DCIM\n    delays:\n      zoom: -1\n",
			errMatch: "zoom",
		},
		{
			name:     "negative request timeout",
			content:  "settings:\n  camera_defaults:\n    package: com.app\n    activity: .Main\n    photo_location: /sdcard/DCIM\n  request_timeout_seconds: -5\n",
			errMatch: "request_timeout_seconds",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMatch)
		})
	}
}
