package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrScriptNotFound is returned when the MediaPipe helper script cannot be located.
var ErrScriptNotFound = errors.New("hand detector script not found")

// ErrHelperTimeout is returned when the helper does not answer within
// Config.ResponseTimeout. The helper is killed and restarted on the next frame.
var ErrHelperTimeout = errors.New("hand detector did not respond")

// DefaultResponseTimeout leaves room for the helper to load its model on the
// first frame.
const DefaultResponseTimeout = 10 * time.Second

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a BGR frame and returns detected hands.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]Hand, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (1..2, default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ModelComplexity selects the landmark model (0 lite, 1 full).
	ModelComplexity int

	// Script and Python override helper discovery when non-empty.
	Script string
	Python string

	// ResponseTimeout bounds one helper round trip. Zero means DefaultResponseTimeout.
	ResponseTimeout time.Duration
}

// DefaultConfig returns the settings the relay runs with out of the box.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.6,
		MinTrackingConf: 0.5,
		ModelComplexity: 1,
		ResponseTimeout: DefaultResponseTimeout,
	}
}
