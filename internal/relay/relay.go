// Package relay glues a frame source, the hand detector and the event sinks
// together.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ankur3509/GestureLab/internal/capture"
	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// Outbound event names.
const (
	EventHandUpdate  = "hand_update"
	EventCameraFrame = "camera_frame"
)

// ReadRetryDelay is how long the camera loop waits after a failed read.
const ReadRetryDelay = 10 * time.Millisecond

// Sink receives relay events.
type Sink interface {
	// Emit delivers one event to every consumer behind the sink.
	Emit(event string, payload any) error
	// Active reports whether anyone is listening. Frames are dropped while
	// no sink is active.
	Active() bool
}

// CameraFrame is the camera_frame payload.
type CameraFrame struct {
	Frame string `json:"frame"`
}

// Options tunes the relay loop.
type Options struct {
	Mirror         bool
	Interval       time.Duration
	PreviewEvery   int
	PreviewWidth   int
	PreviewHeight  int
	PreviewQuality int
}

// DefaultOptions matches the defaults in the config package.
func DefaultOptions() Options {
	return Options{
		Mirror:         true,
		Interval:       16 * time.Millisecond,
		PreviewEvery:   3,
		PreviewWidth:   320,
		PreviewHeight:  240,
		PreviewQuality: 60,
	}
}

// Stats are cumulative relay counters.
type Stats struct {
	FramesProcessed uint64 `json:"frames_processed"`
	FramesDropped   uint64 `json:"frames_dropped"`
	UpdatesEmitted  uint64 `json:"updates_emitted"`
	PreviewsEmitted uint64 `json:"previews_emitted"`
	DecodeErrors    uint64 `json:"decode_errors"`
	DetectErrors    uint64 `json:"detect_errors"`
}

// Relay runs detection on frames and forwards the results.
type Relay struct {
	opts     Options
	camera   capture.Camera
	detector detector.Detector

	sinksMu sync.RWMutex
	sinks   []Sink

	// detectMu serializes detection between the camera loop and client frames.
	detectMu sync.Mutex

	enabled atomic.Bool
	stats   struct {
		processed, dropped, updates, previews, decodeErrs, detectErrs atomic.Uint64
	}

	latestMu sync.RWMutex
	latest   []byte
}

// New creates a relay. camera may be nil when frames only arrive from clients.
func New(opts Options, d detector.Detector, camera capture.Camera, sinks ...Sink) *Relay {
	if opts.PreviewEvery < 1 {
		opts.PreviewEvery = 1
	}
	r := &Relay{
		opts:     opts,
		camera:   camera,
		detector: d,
		sinks:    sinks,
	}
	r.enabled.Store(true)
	return r
}

// AddSink registers another event sink.
func (r *Relay) AddSink(s Sink) {
	r.sinksMu.Lock()
	defer r.sinksMu.Unlock()
	r.sinks = append(r.sinks, s)
}

// SetEnabled pauses or resumes tracking. While paused, frames are dropped.
func (r *Relay) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
	log.Info().Bool("enabled", enabled).Msg("tracking toggled")
}

// Enabled reports whether tracking is active.
func (r *Relay) Enabled() bool {
	return r.enabled.Load()
}

// Stats returns a snapshot of the counters.
func (r *Relay) Stats() Stats {
	return Stats{
		FramesProcessed: r.stats.processed.Load(),
		FramesDropped:   r.stats.dropped.Load(),
		UpdatesEmitted:  r.stats.updates.Load(),
		PreviewsEmitted: r.stats.previews.Load(),
		DecodeErrors:    r.stats.decodeErrs.Load(),
		DetectErrors:    r.stats.detectErrs.Load(),
	}
}

// LatestJPEG returns the most recent annotated preview, or nil.
func (r *Relay) LatestJPEG() []byte {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()
	return r.latest
}

func (r *Relay) setLatest(data []byte) {
	r.latestMu.Lock()
	r.latest = data
	r.latestMu.Unlock()
}

// listening reports whether any sink is active.
func (r *Relay) listening() bool {
	r.sinksMu.RLock()
	defer r.sinksMu.RUnlock()
	for _, s := range r.sinks {
		if s.Active() {
			return true
		}
	}
	return false
}

// broadcast emits an event on every active sink.
func (r *Relay) broadcast(event string, payload any) {
	r.sinksMu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.sinksMu.RUnlock()

	for _, s := range sinks {
		if !s.Active() {
			continue
		}
		if err := s.Emit(event, payload); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("emit failed")
		}
	}
}

func (r *Relay) detect(frame *gocv.Mat) ([]detector.Hand, error) {
	r.detectMu.Lock()
	defer r.detectMu.Unlock()
	return r.detector.Detect(frame)
}
