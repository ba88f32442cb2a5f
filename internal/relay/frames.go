package relay

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Ankur3509/GestureLab/internal/capture"
	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/Ankur3509/GestureLab/internal/render"
)

// ErrPaused is returned by HandleFrame while tracking is disabled.
var ErrPaused = errors.New("tracking paused")

// FrameRequest is the payload of an inbound frame event.
type FrameRequest struct {
	Image   string `json:"image"`
	Preview bool   `json:"preview"`
}

// FrameResult is what a client frame produced.
type FrameResult struct {
	Hands   []detector.Hand
	Preview string // base64 JPEG, set only when requested
}

// HandleFrame runs detection on a client-supplied frame. A frame that cannot
// be decoded returns an error; the caller logs and drops it.
func (r *Relay) HandleFrame(req FrameRequest) (*FrameResult, error) {
	if !r.Enabled() {
		r.stats.dropped.Add(1)
		return nil, ErrPaused
	}

	frame, err := capture.DecodeBase64(req.Image)
	if err != nil {
		r.stats.decodeErrs.Add(1)
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer frame.Close()

	r.stats.processed.Add(1)

	hands, err := r.detect(frame)
	if err != nil {
		r.stats.detectErrs.Add(1)
		return nil, fmt.Errorf("detect hands: %w", err)
	}

	result := &FrameResult{Hands: hands}
	if !req.Preview {
		return result, nil
	}

	render.DrawHands(frame, hands)
	data, err := render.EncodeJPEG(frame, r.opts.PreviewWidth, r.opts.PreviewHeight, r.opts.PreviewQuality)
	if err != nil {
		return nil, err
	}
	r.setLatest(data)
	result.Preview = encodeBase64(data)
	return result, nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
