package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/Ankur3509/GestureLab/internal/bus"
	"github.com/Ankur3509/GestureLab/internal/capture"
	"github.com/Ankur3509/GestureLab/internal/config"
	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/Ankur3509/GestureLab/internal/relay"
	"github.com/Ankur3509/GestureLab/internal/server"
	"github.com/Ankur3509/GestureLab/internal/store"
	"github.com/Ankur3509/GestureLab/internal/tray"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type serveFlags struct {
	port      int
	source    string
	camera    int
	tray      bool
	db        string
	redis     string
	staticDir string
}

var flags serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the landmark relay",
	RunE:  runServe,
}

func init() {
	addServeFlags(rootCmd.Flags())
	addServeFlags(serveCmd.Flags())
	rootCmd.RunE = runServe
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&flags.port, "port", "p", 0, "listen port (overrides PORT)")
	fs.StringVar(&flags.source, "source", "", "frame source: camera or client")
	fs.IntVar(&flags.camera, "camera", 0, "camera device id")
	fs.BoolVar(&flags.tray, "tray", false, "show a system tray menu")
	fs.StringVar(&flags.db, "db", "", "SQLite session journal path")
	fs.StringVar(&flags.redis, "redis", "", "Redis URL to mirror events to")
	fs.StringVar(&flags.staticDir, "static", "", "directory of static files to serve")
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(fs *pflag.FlagSet, c *config.Config) error {
	if fs.Changed("port") {
		c.Server.Port = flags.port
	}
	if fs.Changed("source") {
		c.Camera.Source = flags.source
	}
	if fs.Changed("camera") {
		c.Camera.DeviceID = flags.camera
	}
	if fs.Changed("tray") {
		c.Server.Tray = flags.tray
	}
	if fs.Changed("db") {
		c.Storage.DBPath = flags.db
	}
	if fs.Changed("redis") {
		c.Storage.RedisURL = flags.redis
	}
	if fs.Changed("static") {
		c.Server.StaticDir = flags.staticDir
	}
	return c.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := newDetector(cfg.Detector)
	if err != nil {
		return err
	}
	defer det.Close()

	var camera capture.Camera
	if cfg.Camera.Source == config.SourceCamera {
		camera = capture.NewCamera(capture.Options{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		})
	}

	r := relay.New(relay.Options{
		Mirror:         cfg.Camera.Mirror,
		Interval:       cfg.Camera.Interval,
		PreviewEvery:   cfg.Preview.Every,
		PreviewWidth:   cfg.Preview.Width,
		PreviewHeight:  cfg.Preview.Height,
		PreviewQuality: cfg.Preview.Quality,
	}, det, camera)

	var st *store.Store
	var journal server.Journal
	if cfg.Storage.DBPath != "" {
		st, err = openStore(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		journal = st.Sessions()
	}

	hub := server.NewHub(r, journal)
	r.AddSink(hub)

	if cfg.Storage.RedisURL != "" {
		pub, err := bus.NewPublisher(ctx, cfg.Storage.RedisURL, cfg.Storage.RedisPrefix)
		if err != nil {
			return err
		}
		defer pub.Close()
		r.AddSink(pub)
		log.Info().Str("prefix", cfg.Storage.RedisPrefix).Msg("mirroring events to redis")
	}

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		Source:    cfg.Camera.Source,
		Hub:       hub,
		Relay:     r,
		Store:     st,
	})

	errCh := make(chan error, 2)

	if camera != nil {
		go func() {
			if err := r.Run(ctx); err != nil {
				errCh <- fmt.Errorf("camera loop: %w", err)
			}
		}()
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("source", cfg.Camera.Source).Msg("relay listening")
		errCh <- srv.ListenAndServe(ctx, cfg.Addr())
	}()

	if cfg.Server.Tray {
		return runWithTray(ctx, stop, r, hub, errCh)
	}
	return <-errCh
}

func newDetector(c config.Detector) (detector.Detector, error) {
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        c.MaxHands,
		MinConfidence:   c.MinDetectionConf,
		MinTrackingConf: c.MinTrackingConf,
		ModelComplexity: c.ModelComplexity,
		Script:          c.Script,
		Python:          c.Python,
		ResponseTimeout: c.ResponseTimeout,
	})
	if err == nil {
		log.Info().Msg("using MediaPipe hand detection")
		return mp, nil
	}
	if !c.AllowMockFallback || !errors.Is(err, detector.ErrScriptNotFound) {
		return nil, err
	}
	log.Warn().Err(err).Msg("MediaPipe not available, using mock detector")
	return detector.NewMockDetector(), nil
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open session journal: %w", err)
	}
	if n, err := st.Sessions().CloseDangling(); err != nil {
		log.Warn().Err(err).Msg("closing dangling sessions")
	} else if n > 0 {
		log.Info().Int64("sessions", n).Msg("closed sessions left open by a previous run")
	}
	return st, nil
}

// runWithTray runs the tray on the calling goroutine, which must be the main
// one, until the tray quits or the relay stops.
func runWithTray(ctx context.Context, stop context.CancelFunc, r *relay.Relay, hub *server.Hub, errCh <-chan error) error {
	t := newTray(r, hub, fmt.Sprintf("http://localhost:%d/", cfg.Server.Port), stop)

	result := make(chan error, 1)
	go func() {
		var err error
		select {
		case err = <-errCh:
		case <-ctx.Done():
			err = <-errCh
		}
		t.Quit()
		result <- err
	}()

	t.Run()
	stop()
	return <-result
}

// newTray binds the tray menu to the relay and hub.
func newTray(r *relay.Relay, hub *server.Hub, viewerURL string, quit func()) *tray.Tray {
	t := tray.New()
	t.OnToggle(r.SetEnabled)
	t.OnOpen(func() { openBrowser(viewerURL) })
	t.OnQuit(quit)
	hub.OnCountChange(t.SetClients)
	return t
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}
