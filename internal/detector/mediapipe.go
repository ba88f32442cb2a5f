package detector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// IdleTimeout is how long the helper process may sit unused before it is stopped.
const IdleTimeout = 30 * time.Second

const scriptName = "hand_landmarks.py"

// MediaPipeDetector implements Detector using a MediaPipe helper process.
//
// Wire protocol: for every frame the detector writes a 4-byte big-endian
// length followed by that many bytes of JPEG on the helper's stdin, then reads
// one JSON line of the form {"hands":[{"points":[{x,y,z}...],"handedness":"Right","score":0.9}]}
// from its stdout.
type MediaPipeDetector struct {
	config    Config
	newCmd    func() *exec.Cmd
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The helper process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.Script
	if script == "" {
		script = findScript()
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, script)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	config = normalize(config)
	return NewHelperDetector(config, func() *exec.Cmd {
		return exec.Command(python, append([]string{"-u", script}, helperArgs(config)...)...)
	}), nil
}

// NewHelperDetector creates a detector around any helper command that speaks
// the MediaPipe helper protocol. newCmd is called for every (re)start.
func NewHelperDetector(config Config, newCmd func() *exec.Cmd) *MediaPipeDetector {
	return &MediaPipeDetector{config: normalize(config), newCmd: newCmd}
}

func normalize(c Config) Config {
	if c.MaxHands <= 0 || c.MaxHands > MaxHands {
		c.MaxHands = MaxHands
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	return c
}

func helperArgs(c Config) []string {
	return []string{
		"--max-hands", strconv.Itoa(c.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(c.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(c.MinTrackingConf, 'f', -1, 64),
		"--model-complexity", strconv.Itoa(c.ModelComplexity),
	}
}

// Detect analyzes a frame and returns detected hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return d.detectJPEG(buf.GetBytes())
}

func (d *MediaPipeDetector) detectJPEG(data []byte) ([]Hand, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	line, err := d.roundTrip(data)
	if err != nil {
		// A broken pipe leaves the helper unusable; the next frame restarts it.
		if stopErr := d.shutdown(); stopErr != nil {
			log.Debug().Err(stopErr).Msg("hand detector exited")
		}
		return nil, err
	}

	d.resetIdleTimer()
	return parseResponse(line, d.config.MaxHands)
}

func (d *MediaPipeDetector) roundTrip(data []byte) ([]byte, error) {
	type response struct {
		line []byte
		err  error
	}

	stdin, stdout := d.stdin, d.stdout
	done := make(chan response, 1)
	go func() {
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(data)))

		if _, err := stdin.Write(length); err != nil {
			done <- response{err: fmt.Errorf("write length: %w", err)}
			return
		}
		if _, err := stdin.Write(data); err != nil {
			done <- response{err: fmt.Errorf("write data: %w", err)}
			return
		}

		line, err := stdout.ReadBytes('\n')
		if err != nil {
			err = fmt.Errorf("read response: %w", err)
		}
		done <- response{line: line, err: err}
	}()

	timer := time.NewTimer(d.config.ResponseTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.line, res.err
	case <-timer.C:
		// Killing the helper unblocks the pending write or read.
		if err := d.cmd.Process.Kill(); err != nil {
			log.Debug().Err(err).Msg("kill hand detector")
		}
		return nil, fmt.Errorf("%w within %s", ErrHelperTimeout, d.config.ResponseTimeout)
	}
}

// Close shuts down the helper process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	cmd := d.newCmd()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start hand detector: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	log.Info().Int("pid", cmd.Process.Pid).Msg("hand detector started")
	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.Debug().Err(err).Msg("idle hand detector exited")
		}
		log.Info().Msg("hand detector stopped after idle timeout")
	})
}

// jsonHand is the per-hand structure emitted by the helper.
type jsonHand struct {
	Points     []Landmark `json:"points"`
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
}

// parseResponse decodes one helper response line. Hands with an incomplete
// landmark set are dropped, the result is capped at maxHands and coordinates
// are clamped.
func parseResponse(line []byte, maxHands int) ([]Hand, error) {
	if maxHands <= 0 || maxHands > MaxHands {
		maxHands = MaxHands
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := sonic.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("hand detector: %s", response.Error)
	}

	hands := make([]Hand, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		if len(hands) >= maxHands {
			break
		}
		hand := Hand{Handedness: h.Handedness, Score: h.Score}
		copy(hand.Points[:], h.Points)
		hand.Clamp()
		hands = append(hands, hand)
	}
	return hands, nil
}

func findScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".gesturelab", "scripts", scriptName),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".gesturelab/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
