// Package web serves the posecam dashboard: REST status endpoints and
// websocket feeds for scores, loop status, and the rendered camera view.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/internal/log"
	"github.com/teslashibe/posecam/pkg/camera"
	"github.com/teslashibe/posecam/pkg/hub"
	"github.com/teslashibe/posecam/pkg/motion"
	"github.com/teslashibe/posecam/pkg/pipeline"
)

// Source is the loop the dashboard reports on.
type Source interface {
	Status() pipeline.Status
	Config() pipeline.ModelConfig
}

// DeviceLister enumerates cameras.
type DeviceLister interface {
	Devices(ctx context.Context) ([]camera.DeviceInfo, error)
}

// Config configures the server.
type Config struct {
	Addr           string        // listen address, e.g. ":8080"
	StaticDir      string        // optional directory served at /
	CameraFPS      int           // max JPEG frames per second pushed to /ws/camera
	JPEGQuality    int           // 1-100
	StatusInterval time.Duration // period of /ws/status pushes
}

// DefaultConfig returns dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CameraFPS:      10,
		JPEGQuality:    75,
		StatusInterval: time.Second,
	}
}

// Server is the dashboard. It is also a pipeline.Display that forwards
// rendered frames to camera subscribers.
type Server struct {
	cfg     Config
	app     *fiber.App
	sink    *pipeline.Sink
	devices DeviceLister
	logger  *slog.Logger

	mu     sync.RWMutex
	source Source

	frameMu   sync.Mutex
	lastFrame time.Time

	scoreHub  *hub.Hub
	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates the dashboard. sink receives the loop's scores;
// devices may be nil when enumeration is unavailable.
func NewServer(cfg Config, sink *pipeline.Sink, devices DeviceLister) *Server {
	s := &Server{
		cfg:       cfg,
		sink:      sink,
		devices:   devices,
		logger:    log.Component("web"),
		scoreHub:  hub.New("score"),
		statusHub: hub.New("status"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "posecam",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/score", s.handleScore)
	api.Get("/config", s.handleConfig)
	api.Get("/devices", s.handleDevices)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/score", websocket.New(s.handleScoreWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// Attach sets the loop reported by /api/status and /api/config.
func (s *Server) Attach(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *Server) currentSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Start runs the hubs and serves on cfg.Addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.scoreHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	if s.sink != nil {
		ch, unsubscribe := s.sink.Subscribe()
		go s.forwardScores(ctx, ch, unsubscribe)
	}
	go s.pushStatus(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// forwardScores relays every published score to /ws/score clients.
func (s *Server) forwardScores(ctx context.Context, ch <-chan motion.Score, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case score, ok := <-ch:
			if !ok {
				return
			}
			if err := s.scoreHub.BroadcastJSON(newScoreResponse(score, time.Now())); err != nil {
				s.logger.Warn("encode score", "error", err)
			}
		}
	}
}

func (s *Server) pushStatus(ctx context.Context) {
	interval := s.cfg.StatusInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if src := s.currentSource(); src != nil {
				s.statusHub.BroadcastJSON(src.Status())
			}
		}
	}
}

// Show implements pipeline.Display. Frames are JPEG-encoded only while
// someone is watching, and no faster than cfg.CameraFPS.
func (s *Server) Show(frame gocv.Mat) error {
	if s.cameraHub.ClientCount() == 0 || frame.Empty() {
		return nil
	}
	if !s.frameDue(time.Now()) {
		return nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, s.quality()})
	if err != nil {
		// a bad frame should not fault the loop
		s.logger.Debug("encode frame", "error", err)
		return nil
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)
	s.cameraHub.BroadcastBinary(data)
	return nil
}

func (s *Server) frameDue(now time.Time) bool {
	if s.cfg.CameraFPS <= 0 {
		return true
	}
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	if now.Sub(s.lastFrame) < time.Second/time.Duration(s.cfg.CameraFPS) {
		return false
	}
	s.lastFrame = now
	return true
}

func (s *Server) quality() int {
	q := s.cfg.JPEGQuality
	if q < 1 || q > 100 {
		return 75
	}
	return q
}

// scoreResponse is the wire form of a motion score.
type scoreResponse struct {
	motion.Score
	Dominant  string    `json:"dominant"`
	Label     string    `json:"label"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newScoreResponse(score motion.Score, at time.Time) scoreResponse {
	return scoreResponse{
		Score:     score,
		Dominant:  score.Dominant(),
		Label:     score.String(),
		UpdatedAt: at,
	}
}
