package relay

import (
	"context"
	"errors"
	"time"

	"github.com/Ankur3509/GestureLab/internal/capture"
	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/Ankur3509/GestureLab/internal/render"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// ErrNoCamera is returned by Run when the relay was built without a camera.
var ErrNoCamera = errors.New("relay has no camera")

// Run polls the camera until ctx is cancelled.
//
// Loop:
//  1. Read a frame; on failure wait ReadRetryDelay and retry.
//  2. Drop the frame when tracking is paused or nobody is listening.
//  3. Mirror, detect, draw the skeleton.
//  4. Emit hand_update when at least one hand was found.
//  5. Emit camera_frame on every PreviewEvery-th processed frame.
//  6. Wait Interval.
func (r *Relay) Run(ctx context.Context) error {
	if r.camera == nil {
		return ErrNoCamera
	}

	if err := r.camera.Open(); err != nil {
		return err
	}
	defer func() {
		if err := r.camera.Close(); err != nil {
			log.Error().Err(err).Msg("error closing camera")
		}
	}()

	log.Info().Int("fps", r.camera.FPS()).Msg("camera started, hand tracking active")

	var processed int
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := r.camera.ReadFrame()
		if err != nil {
			log.Trace().Err(err).Msg("camera read failed")
			if !sleep(ctx, ReadRetryDelay) {
				return nil
			}
			continue
		}

		if r.processCameraFrame(frame, processed+1) {
			processed++
		}

		if !sleep(ctx, r.opts.Interval) {
			return nil
		}
	}
}

// processCameraFrame handles one frame from the camera and closes it.
// n is the 1-based index the frame gets if it is processed. It reports
// whether the frame was processed rather than dropped.
func (r *Relay) processCameraFrame(frame *gocv.Mat, n int) bool {
	defer frame.Close()

	if !r.Enabled() || !r.listening() {
		r.stats.dropped.Add(1)
		return false
	}
	r.stats.processed.Add(1)

	if r.opts.Mirror {
		capture.Mirror(frame)
	}

	hands, err := r.detect(frame)
	if err != nil {
		r.stats.detectErrs.Add(1)
		log.Warn().Err(err).Msg("hand detection failed")
		hands = nil
	}

	render.DrawHands(frame, hands)

	if len(hands) > 0 {
		r.broadcast(EventHandUpdate, detector.Payload(hands))
		r.stats.updates.Add(1)
	}

	if n%r.opts.PreviewEvery == 0 {
		data, err := render.EncodeJPEG(frame, r.opts.PreviewWidth, r.opts.PreviewHeight, r.opts.PreviewQuality)
		if err != nil {
			log.Warn().Err(err).Msg("preview encode failed")
			return true
		}
		r.setLatest(data)
		r.broadcast(EventCameraFrame, CameraFrame{Frame: encodeBase64(data)})
		r.stats.previews.Add(1)
	}

	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
