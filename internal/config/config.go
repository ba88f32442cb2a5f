// Package config loads GestureLab settings from .env files, an optional YAML
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Frame source kinds.
const (
	SourceCamera = "camera"
	SourceClient = "client"
)

// EnvPrefix is the prefix applied to every environment variable except PORT.
// Variables are named GESTURELAB_<SECTION>_<FIELD>, e.g. GESTURELAB_CAMERA_DEVICE_ID.
const EnvPrefix = "GESTURELAB"

// MaxHands is the most hands a detector may report per frame.
const MaxHands = 2

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Server holds listener settings.
type Server struct {
	Host      string `yaml:"host" split_words:"true"`
	Port      int    `yaml:"port" split_words:"true"`
	StaticDir string `yaml:"static_dir" split_words:"true"`
	Tray      bool   `yaml:"tray" split_words:"true"`
}

// Camera holds capture device settings.
type Camera struct {
	Source   string        `yaml:"source" split_words:"true"`
	DeviceID int           `yaml:"device_id" split_words:"true"`
	Width    int           `yaml:"width" split_words:"true"`
	Height   int           `yaml:"height" split_words:"true"`
	FPS      int           `yaml:"fps" split_words:"true"`
	Mirror   bool          `yaml:"mirror" split_words:"true"`
	Interval time.Duration `yaml:"interval" split_words:"true"`
}

// Preview holds settings for the annotated camera_frame images.
type Preview struct {
	Every   int `yaml:"every" split_words:"true"`
	Width   int `yaml:"width" split_words:"true"`
	Height  int `yaml:"height" split_words:"true"`
	Quality int `yaml:"quality" split_words:"true"`
}

// Detector holds hand landmark detector settings.
type Detector struct {
	MaxHands          int     `yaml:"max_hands" split_words:"true"`
	MinDetectionConf  float64 `yaml:"min_detection_confidence" split_words:"true"`
	MinTrackingConf   float64 `yaml:"min_tracking_confidence" split_words:"true"`
	ModelComplexity   int     `yaml:"model_complexity" split_words:"true"`
	Script            string  `yaml:"script" split_words:"true"`
	Python            string  `yaml:"python" split_words:"true"`
	AllowMockFallback bool    `yaml:"allow_mock_fallback" split_words:"true"`

	ResponseTimeout time.Duration `yaml:"response_timeout" split_words:"true"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Storage holds optional persistence and fan-out settings.
type Storage struct {
	DBPath      string `yaml:"db_path" split_words:"true"`
	RedisURL    string `yaml:"redis_url" split_words:"true"`
	RedisPrefix string `yaml:"redis_prefix" split_words:"true"`
}

// Config is the full application configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Camera   Camera   `yaml:"camera"`
	Preview  Preview  `yaml:"preview"`
	Detector Detector `yaml:"detector"`
	Log      Log      `yaml:"log"`
	Storage  Storage  `yaml:"storage"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 5050,
		},
		Camera: Camera{
			Source:   SourceCamera,
			Width:    640,
			Height:   480,
			FPS:      30,
			Mirror:   true,
			Interval: 16 * time.Millisecond,
		},
		Preview: Preview{
			Every:   3,
			Width:   320,
			Height:  240,
			Quality: 60,
		},
		Detector: Detector{
			MaxHands:          2,
			MinDetectionConf:  0.6,
			MinTrackingConf:   0.5,
			ModelComplexity:   1,
			AllowMockFallback: true,
			ResponseTimeout:   10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Storage: Storage{
			RedisPrefix: "gesturelab",
		},
	}
}

// Load builds a Config. Values are layered: defaults, then the YAML file at
// path (if path is non-empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: PORT %q is not a number", ErrInvalidConfig, p)
		}
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Camera.Source {
	case SourceCamera, SourceClient:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Camera.Source)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("%w: preview size %dx%d", ErrInvalidConfig, c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		return fmt.Errorf("%w: preview quality %d", ErrInvalidConfig, c.Preview.Quality)
	}
	if c.Preview.Every < 1 {
		return fmt.Errorf("%w: preview interval %d", ErrInvalidConfig, c.Preview.Every)
	}
	if c.Detector.MaxHands < 1 || c.Detector.MaxHands > MaxHands {
		return fmt.Errorf("%w: max hands %d", ErrInvalidConfig, c.Detector.MaxHands)
	}
	if !inUnit(c.Detector.MinDetectionConf) || !inUnit(c.Detector.MinTrackingConf) {
		return fmt.Errorf("%w: confidences must be within [0,1]", ErrInvalidConfig)
	}
	if c.Detector.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: detector response timeout must be positive", ErrInvalidConfig)
	}
	if c.Camera.Interval < 0 {
		return fmt.Errorf("%w: negative loop interval", ErrInvalidConfig)
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
