package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a Detector whose results are set by the caller. It stands
// in for MediaPipe in tests and when the helper script is not installed.
type MockDetector struct {
	mu    sync.Mutex
	hands []Hand
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has run.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Hand, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUp returns a right hand with the thumb raised and other fingers curled.
func ThumbsUp() Hand {
	hand := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	hand.Points[Wrist] = Landmark{X: 0.5, Y: 0.8, Z: 0.0}

	hand.Points[ThumbCMC] = Landmark{X: 0.55, Y: 0.75, Z: 0.0}
	hand.Points[ThumbMCP] = Landmark{X: 0.58, Y: 0.65, Z: 0.0}
	hand.Points[ThumbIP] = Landmark{X: 0.58, Y: 0.50, Z: 0.0}
	hand.Points[ThumbTip] = Landmark{X: 0.58, Y: 0.35, Z: 0.0}

	hand.Points[IndexMCP] = Landmark{X: 0.55, Y: 0.70, Z: -0.02}
	hand.Points[IndexPIP] = Landmark{X: 0.55, Y: 0.68, Z: -0.05}
	hand.Points[IndexDIP] = Landmark{X: 0.52, Y: 0.70, Z: -0.04}
	hand.Points[IndexTip] = Landmark{X: 0.50, Y: 0.72, Z: -0.02}

	hand.Points[MiddleMCP] = Landmark{X: 0.50, Y: 0.68, Z: -0.02}
	hand.Points[MiddlePIP] = Landmark{X: 0.50, Y: 0.66, Z: -0.05}
	hand.Points[MiddleDIP] = Landmark{X: 0.47, Y: 0.68, Z: -0.04}
	hand.Points[MiddleTip] = Landmark{X: 0.45, Y: 0.70, Z: -0.02}

	hand.Points[RingMCP] = Landmark{X: 0.45, Y: 0.70, Z: -0.02}
	hand.Points[RingPIP] = Landmark{X: 0.45, Y: 0.68, Z: -0.05}
	hand.Points[RingDIP] = Landmark{X: 0.42, Y: 0.70, Z: -0.04}
	hand.Points[RingTip] = Landmark{X: 0.40, Y: 0.72, Z: -0.02}

	hand.Points[PinkyMCP] = Landmark{X: 0.40, Y: 0.72, Z: -0.02}
	hand.Points[PinkyPIP] = Landmark{X: 0.40, Y: 0.70, Z: -0.05}
	hand.Points[PinkyDIP] = Landmark{X: 0.37, Y: 0.72, Z: -0.04}
	hand.Points[PinkyTip] = Landmark{X: 0.35, Y: 0.74, Z: -0.02}

	return hand
}

// OpenPalm returns a right hand with all fingers extended.
func OpenPalm() Hand {
	hand := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	hand.Points[Wrist] = Landmark{X: 0.5, Y: 0.8, Z: 0.0}

	hand.Points[ThumbCMC] = Landmark{X: 0.55, Y: 0.75, Z: 0.02}
	hand.Points[ThumbMCP] = Landmark{X: 0.62, Y: 0.70, Z: 0.03}
	hand.Points[ThumbIP] = Landmark{X: 0.68, Y: 0.65, Z: 0.03}
	hand.Points[ThumbTip] = Landmark{X: 0.73, Y: 0.60, Z: 0.03}

	hand.Points[IndexMCP] = Landmark{X: 0.55, Y: 0.68, Z: 0.0}
	hand.Points[IndexPIP] = Landmark{X: 0.57, Y: 0.55, Z: 0.0}
	hand.Points[IndexDIP] = Landmark{X: 0.58, Y: 0.45, Z: 0.0}
	hand.Points[IndexTip] = Landmark{X: 0.58, Y: 0.35, Z: 0.0}

	hand.Points[MiddleMCP] = Landmark{X: 0.50, Y: 0.66, Z: 0.0}
	hand.Points[MiddlePIP] = Landmark{X: 0.50, Y: 0.52, Z: 0.0}
	hand.Points[MiddleDIP] = Landmark{X: 0.50, Y: 0.40, Z: 0.0}
	hand.Points[MiddleTip] = Landmark{X: 0.50, Y: 0.28, Z: 0.0}

	hand.Points[RingMCP] = Landmark{X: 0.45, Y: 0.68, Z: 0.0}
	hand.Points[RingPIP] = Landmark{X: 0.43, Y: 0.55, Z: 0.0}
	hand.Points[RingDIP] = Landmark{X: 0.42, Y: 0.45, Z: 0.0}
	hand.Points[RingTip] = Landmark{X: 0.42, Y: 0.35, Z: 0.0}

	hand.Points[PinkyMCP] = Landmark{X: 0.40, Y: 0.70, Z: 0.0}
	hand.Points[PinkyPIP] = Landmark{X: 0.37, Y: 0.60, Z: 0.0}
	hand.Points[PinkyDIP] = Landmark{X: 0.35, Y: 0.50, Z: 0.0}
	hand.Points[PinkyTip] = Landmark{X: 0.34, Y: 0.42, Z: 0.0}

	return hand
}
