package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, SourceCamera, cfg.Camera.Source)
	assert.Equal(t, 16*time.Millisecond, cfg.Camera.Interval)
	assert.Equal(t, 3, cfg.Preview.Every)
	assert.Equal(t, 60, cfg.Preview.Quality)
	assert.Equal(t, 2, cfg.Detector.MaxHands)
	assert.InDelta(t, 0.6, cfg.Detector.MinDetectionConf, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GESTURELAB_SERVER_PORT", "6000")
	t.Setenv("GESTURELAB_CAMERA_SOURCE", "client")
	t.Setenv("GESTURELAB_PREVIEW_QUALITY", "80")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, SourceClient, cfg.Camera.Source)
	assert.Equal(t, 80, cfg.Preview.Quality)
	assert.Equal(t, "0.0.0.0:6000", cfg.Addr())
}

func TestLoad_PortOverridesEverything(t *testing.T) {
	t.Setenv("GESTURELAB_SERVER_PORT", "6000")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_IgnoresUnprefixedNames(t *testing.T) {
	t.Setenv("HOST", "build-box-17")
	t.Setenv("SOURCE", "")
	t.Setenv("MIRROR", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_URL", "redis://elsewhere:6379")
	t.Setenv("MAX_HANDS", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5050", cfg.Addr())
	assert.Equal(t, SourceCamera, cfg.Camera.Source)
	assert.True(t, cfg.Camera.Mirror)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Storage.RedisURL)
	assert.Equal(t, 2, cfg.Detector.MaxHands)
}

func TestLoad_SplitWordNames(t *testing.T) {
	t.Setenv("GESTURELAB_CAMERA_DEVICE_ID", "3")
	t.Setenv("GESTURELAB_STORAGE_DB_PATH", "/var/lib/gesturelab.db")
	t.Setenv("GESTURELAB_DETECTOR_MAX_HANDS", "1")
	t.Setenv("GESTURELAB_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Camera.DeviceID)
	assert.Equal(t, "/var/lib/gesturelab.db", cfg.Storage.DBPath)
	assert.Equal(t, 1, cfg.Detector.MaxHands)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_TooManyHands(t *testing.T) {
	t.Setenv("GESTURELAB_DETECTOR_MAX_HANDS", "4")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_BadPort(t *testing.T) {
	t.Setenv("PORT", "http")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gesturelab.yaml")
	content := `
server:
  port: 9090
camera:
  source: client
  interval: 33ms
detector:
  max_hands: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, SourceClient, cfg.Camera.Source)
	assert.Equal(t, 33*time.Millisecond, cfg.Camera.Interval)
	assert.Equal(t, 1, cfg.Detector.MaxHands)
	// untouched values keep their defaults
	assert.Equal(t, 320, cfg.Preview.Width)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown source", func(c *Config) { c.Camera.Source = "webcam" }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"preview width", func(c *Config) { c.Preview.Width = 0 }},
		{"quality", func(c *Config) { c.Preview.Quality = 101 }},
		{"preview every", func(c *Config) { c.Preview.Every = 0 }},
		{"max hands", func(c *Config) { c.Detector.MaxHands = 0 }},
		{"too many hands", func(c *Config) { c.Detector.MaxHands = 3 }},
		{"detection confidence", func(c *Config) { c.Detector.MinDetectionConf = 1.5 }},
		{"tracking confidence", func(c *Config) { c.Detector.MinTrackingConf = -0.1 }},
		{"interval", func(c *Config) { c.Camera.Interval = -time.Second }},
		{"response timeout", func(c *Config) { c.Detector.ResponseTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
