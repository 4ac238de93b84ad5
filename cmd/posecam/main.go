// posecam - live body segmentation effects and motion classification
//
// Captures a camera, runs pose and segmentation inference on every frame,
// renders the configured effect, and scores the direction of arm motion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/pion/mediadevices/pkg/driver/camera"

	"github.com/teslashibe/posecam/internal/config"
	"github.com/teslashibe/posecam/internal/log"
	"github.com/teslashibe/posecam/pkg/camera"
	"github.com/teslashibe/posecam/pkg/pipeline"
	"github.com/teslashibe/posecam/pkg/segment"
	"github.com/teslashibe/posecam/pkg/web"
)

type flags struct {
	config      string
	camera      string
	backend     string
	logLevel    string
	http        string
	window      bool
	listDevices bool
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, f)
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "❌ invalid flags: %v\n", errs)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver := newResolver(cfg)

	if f.listDevices {
		if err := listDevices(ctx, resolver); err != nil {
			logger.Error("list devices", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, resolver, f.window); err != nil {
		logger.Error("posecam stopped", "error", err)
		os.Exit(1)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to a YAML config file")
	flag.StringVar(&f.camera, "camera", "", "Camera label to open (overrides config and "+config.EnvCamera+")")
	flag.StringVar(&f.backend, "backend", "", "Camera backend: mediadevices or opencv")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.http, "http", "", "Dashboard port, or \"off\" to disable")
	flag.BoolVar(&f.window, "window", false, "Show rendered frames in a native window")
	flag.BoolVar(&f.listDevices, "list-devices", false, "Print video inputs and exit")
	flag.Parse()
	return f
}

// applyFlags lets explicit flags win over file and environment.
func applyFlags(cfg *config.Config, f flags) {
	if f.camera != "" {
		cfg.Model.Camera = f.camera
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	switch f.http {
	case "":
	case "off":
		cfg.HTTP.Enabled = false
	default:
		cfg.HTTP.Enabled = true
		cfg.HTTP.Port = f.http
	}
}

func newResolver(cfg *config.Config) *camera.Resolver {
	opts := []camera.Option{camera.WithCapture(cfg.Capture)}
	if cfg.UserAgent != "" {
		opts = append(opts, camera.WithUserAgent(cfg.UserAgent))
	}

	if cfg.Backend == config.BackendOpenCV {
		// OpenCV opens devices by index or URL and cannot list them.
		return camera.NewResolver(nil, camera.OpenCV{}, opts...)
	}
	md := camera.NewMediaDevices()
	return camera.NewResolver(md, md, opts...)
}

func listDevices(ctx context.Context, r *camera.Resolver) error {
	devices, err := r.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Kind != camera.KindVideoInput {
			continue
		}
		fmt.Printf("%-40s %s\n", d.Label, d.DeviceID)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, resolver *camera.Resolver, window bool) error {
	logger := log.Component("main")
	sink := pipeline.NewSink()

	var displays pipeline.MultiDisplay

	var server *web.Server
	serverErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		wc := web.DefaultConfig()
		wc.Addr = cfg.Addr()
		wc.StaticDir = cfg.HTTP.StaticDir
		wc.CameraFPS = cfg.HTTP.CameraFPS
		server = web.NewServer(wc, sink, resolver)
		displays = append(displays, server)
		go func() { serverErr <- server.Start(ctx) }()
		logger.Info("dashboard enabled", "addr", wc.Addr)
	}

	var win *pipeline.WindowDisplay
	if window {
		win = pipeline.NewWindowDisplay("posecam")
		defer win.Close()
		displays = append(displays, win)
	}

	sched := pipeline.NewRefreshScheduler(pipeline.DefaultRefreshRate)
	defer sched.Stop()

	loop, err := pipeline.NewLoop(cfg.Model, pipeline.Options{
		Loader:    segment.NewDNNLoader(segment.DefaultDNNConfig()),
		Resolver:  resolver,
		Display:   displays,
		Scheduler: sched,
		Sink:      sink,
	})
	if err != nil {
		return err
	}
	defer loop.Close()
	if server != nil {
		server.Attach(loop)
	}

	if window {
		// native windows must be driven from the main goroutine
		err = runOnMain(ctx, loop, sched)
	} else {
		if err = loop.Start(ctx); err == nil {
			err = loop.Wait()
		}
	}

	select {
	case serr := <-serverErr:
		err = errors.Join(err, serr)
	default:
	}
	return err
}

func runOnMain(ctx context.Context, loop *pipeline.Loop, sched pipeline.Scheduler) error {
	if err := loop.Load(ctx); err != nil {
		return err
	}
	tickCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		if err := loop.Step(tickCtx); err != nil {
			return err
		}
		if err := sched.Next(ctx); err != nil {
			break
		}
	}
	return nil
}
