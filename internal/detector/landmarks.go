// Package detector provides hand landmark detection for the relay.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// MaxHands is the most hands reported for one frame.
const MaxHands = 2

// Landmark is a hand joint in normalized image coordinates. X and Y lie in
// [0,1]; Z is relative depth with the wrist as reference.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is one detected hand.
type Hand struct {
	Points     [NumLandmarks]Landmark `json:"points"`
	Handedness string                 `json:"handedness"` // "Left" or "Right"
	Score      float64                `json:"score"`
}

// Marks returns the landmarks as a slice, the shape sent to clients.
func (h *Hand) Marks() []Landmark {
	marks := make([]Landmark, NumLandmarks)
	copy(marks, h.Points[:])
	return marks
}

// Clamp forces every X and Y into [0,1].
func (h *Hand) Clamp() {
	for i := range h.Points {
		h.Points[i].X = clampUnit(h.Points[i].X)
		h.Points[i].Y = clampUnit(h.Points[i].Y)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Payload converts hands into the hand_update wire shape: one array of
// landmarks per hand.
func Payload(hands []Hand) [][]Landmark {
	out := make([][]Landmark, len(hands))
	for i := range hands {
		out[i] = hands[i].Marks()
	}
	return out
}
