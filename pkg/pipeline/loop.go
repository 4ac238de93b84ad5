package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/posecam/internal/log"
	"github.com/teslashibe/posecam/pkg/camera"
	"github.com/teslashibe/posecam/pkg/effect"
	"github.com/teslashibe/posecam/pkg/motion"
	"github.com/teslashibe/posecam/pkg/pose"
	"github.com/teslashibe/posecam/pkg/segment"
)

// Pose overlays are drawn for keypoints scoring at least this much.
const minPoseConfidence = 0.1

// State is the lifecycle stage of a Loop.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateStopped
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ExecuteState is what a running loop works with: the playing camera, the
// loaded engine, and the constraints the camera was acquired with.
type ExecuteState struct {
	Video       *camera.VideoSource
	Engine      segment.Engine
	Constraints camera.Constraints
}

// Options wires a Loop to its collaborators. Loader and Resolver are
// required.
type Options struct {
	Loader    segment.Loader
	Resolver  *camera.Resolver
	Display   Display   // optional
	Scheduler Scheduler // defaults to a 60 Hz RefreshScheduler
	Sink      *Sink     // defaults to a new Sink
	Logger    *slog.Logger
}

// Status is a snapshot of the loop for reporting.
type Status struct {
	State       State              `json:"-"`
	StateName   string             `json:"state"`
	Error       string             `json:"error,omitempty"`
	Ticks       uint64             `json:"ticks"`
	Rendered    uint64             `json:"rendered"`
	Estimator   string             `json:"estimator"`
	Effect      string             `json:"effect"`
	Constraints camera.Constraints `json:"constraints"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	StartedAt   time.Time          `json:"startedAt,omitzero"`
}

// Loop is one session of the frame loop. It owns the camera and engine
// from a successful Load until it stops or faults.
type Loop struct {
	cfg  ModelConfig
	plan Plan

	loader    segment.Loader
	resolver  *camera.Resolver
	display   Display
	scheduler Scheduler
	sink      *Sink
	logger    *slog.Logger

	// set when the loop created its own scheduler and must stop it
	ownTicker *RefreshScheduler

	mu        sync.Mutex
	state     State
	err       error
	exec      ExecuteState
	ticks     uint64
	rendered  uint64
	startedAt time.Time

	// tick buffers, only touched by the goroutine running ticks
	frame  gocv.Mat
	canvas gocv.Mat

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop validates cfg and resolves it into a Plan. Unrecognized names are
// logged and leave the loop running without inference or rendering.
func NewLoop(cfg ModelConfig, opts Options) (*Loop, error) {
	if opts.Loader == nil || opts.Resolver == nil {
		return nil, errors.New("pipeline: loader and resolver are required")
	}
	cfg = cfg.Clone()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	l := &Loop{
		cfg:       cfg,
		plan:      NewPlan(cfg),
		loader:    opts.Loader,
		resolver:  opts.Resolver,
		display:   opts.Display,
		scheduler: opts.Scheduler,
		sink:      opts.Sink,
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	if l.scheduler == nil {
		l.ownTicker = NewRefreshScheduler(DefaultRefreshRate)
		l.scheduler = l.ownTicker
	}
	if l.sink == nil {
		l.sink = NewSink()
	}
	if l.logger == nil {
		l.logger = log.Component("pipeline")
	}

	for _, p := range l.plan.Problems {
		l.logger.Warn("configuration not recognized, frames will pass through", "error", p)
	}
	return l, nil
}

// Config returns a copy of the loop's configuration.
func (l *Loop) Config() ModelConfig {
	return l.cfg.Clone()
}

// Plan returns the resolved plan.
func (l *Loop) Plan() Plan {
	return l.plan
}

// Sink returns the sink receiving motion scores.
func (l *Loop) Sink() *Sink {
	return l.sink
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that faulted the loop.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// ExecuteState returns the camera and engine of a loaded loop.
func (l *Loop) ExecuteState() (ExecuteState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exec, l.state == StateRunning
}

// Status returns a reporting snapshot.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Status{
		State:       l.state,
		StateName:   l.state.String(),
		Ticks:       l.ticks,
		Rendered:    l.rendered,
		Estimator:   l.plan.Estimator.String(),
		Effect:      l.plan.Effect.String(),
		Constraints: l.exec.Constraints,
		StartedAt:   l.startedAt,
	}
	if l.err != nil {
		s.Error = l.err.Error()
	}
	if l.exec.Video != nil {
		s.Width = l.exec.Video.Width
		s.Height = l.exec.Video.Height
	}
	return s
}

// Load acquires the camera and loads the engine concurrently. If either
// fails the other is released and the loop faults.
func (l *Loop) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateIdle {
		st := l.state
		l.mu.Unlock()
		return &StateError{Op: "load", State: st}
	}
	l.state = StateLoading
	l.mu.Unlock()

	l.logger.Info("loading",
		"algorithm", l.cfg.Algorithm,
		"estimate", l.cfg.Estimate,
		"architecture", l.cfg.Input.Architecture,
		"camera", l.cfg.Camera)

	var (
		engine segment.Engine
		video  *camera.VideoSource
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := l.loader.Load(gctx, l.cfg.ModelOptions())
		if err != nil {
			if !errors.Is(err, segment.ErrEngineLoad) {
				err = &segment.LoadError{Model: l.cfg.Input.Architecture, Err: err}
			}
			return err
		}
		engine = e
		return nil
	})
	g.Go(func() error {
		v, err := l.resolver.Resolve(gctx, l.cfg.Camera)
		if err != nil {
			return err
		}
		video = v
		return nil
	})

	if err := g.Wait(); err != nil {
		if engine != nil {
			engine.Close()
		}
		if video != nil {
			video.Close()
		}
		l.fault(err)
		return err
	}

	video.Play()

	l.mu.Lock()
	l.exec = ExecuteState{Video: video, Engine: engine, Constraints: video.Constraints}
	l.frame = gocv.NewMat()
	l.canvas = gocv.NewMat()
	l.state = StateRunning
	l.startedAt = time.Now()
	l.mu.Unlock()

	l.logger.Info("running",
		"estimator", l.plan.Estimator,
		"effect", l.plan.Effect,
		"width", video.Width,
		"height", video.Height)
	return nil
}

// Step runs one tick. Unrecognized configuration, a missing frame, and
// malformed poses only skip work; any other failure faults the loop and is
// returned. Step must not be called concurrently with itself or Start.
func (l *Loop) Step(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateRunning {
		st := l.state
		l.mu.Unlock()
		return &StateError{Op: "step", State: st}
	}
	exec := l.exec
	l.mu.Unlock()

	rendered, err := l.tick(ctx, exec)

	l.mu.Lock()
	l.ticks++
	if rendered {
		l.rendered++
	}
	l.mu.Unlock()

	if err != nil {
		l.fault(err)
		return err
	}
	return nil
}

func (l *Loop) tick(ctx context.Context, exec ExecuteState) (bool, error) {
	if err := exec.Video.Frame(&l.frame); err != nil {
		if errors.Is(err, camera.ErrNoFrame) {
			l.logger.Debug("no frame yet")
			return false, nil
		}
		return false, fmt.Errorf("pipeline: read frame: %w", err)
	}

	res, err := l.plan.Estimate(ctx, exec.Engine, l.frame)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedConfiguration) {
			l.logger.Debug("inference skipped", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("pipeline: inference: %w", err)
	}

	render := l.plan.Renderer != nil
	if render {
		if err := l.plan.Renderer.Render(&l.canvas, l.frame, res); err != nil {
			return false, fmt.Errorf("pipeline: render %s: %w", l.plan.Effect, err)
		}
		if l.plan.FlipHorizontal {
			effect.Flip(&l.canvas)
		}
	}

	var (
		last   motion.Score
		scored bool
	)
	for _, p := range res.Poses {
		if l.plan.FlipHorizontal {
			p = pose.FlipHorizontal(p, res.Width)
		}
		if render && l.plan.ShowPoses {
			effect.DrawKeypoints(&l.canvas, p.Keypoints, minPoseConfidence, effect.Aqua)
			effect.DrawSkeleton(&l.canvas, p.Keypoints, minPoseConfidence, effect.Aqua)
		}

		score, err := motion.ClassifyPose(p)
		if err != nil {
			l.logger.Debug("pose not classified", "error", err)
			continue
		}
		l.sink.Publish(score)
		last, scored = score, true
	}

	if !render {
		return false, nil
	}
	if scored && l.plan.ShowPoses {
		effect.DrawLabel(&l.canvas, last.String())
	}
	if l.display != nil {
		if err := l.display.Show(l.canvas); err != nil {
			return true, fmt.Errorf("pipeline: display: %w", err)
		}
	}
	return true, nil
}

// Start loads the loop if needed and runs ticks in the background until
// ctx is cancelled, Stop is called, or a tick fails. Each tick runs to
// completion; cancellation is observed between ticks.
func (l *Loop) Start(ctx context.Context) error {
	if l.State() == StateIdle {
		if err := l.Load(ctx); err != nil {
			return err
		}
	}

	l.mu.Lock()
	if l.state != StateRunning || l.cancel != nil {
		st := l.state
		l.mu.Unlock()
		return &StateError{Op: "start", State: st}
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(runCtx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.release(StateStopped)

	tickCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.Step(tickCtx); err != nil {
			return
		}
		if err := l.scheduler.Next(ctx); err != nil {
			return
		}
	}
}

// Stop asks a started loop to finish after the current tick.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until a started loop has stopped and returns the fault, if
// any.
func (l *Loop) Wait() error {
	l.mu.Lock()
	started := l.cancel != nil
	l.mu.Unlock()
	if started {
		<-l.done
	}
	return l.Err()
}

// Close stops the loop and releases the camera and engine. It is safe to
// call in any state.
func (l *Loop) Close() error {
	l.mu.Lock()
	started := l.cancel != nil
	l.mu.Unlock()

	if started {
		l.Stop()
		<-l.done
		return nil
	}
	l.release(StateStopped)
	return nil
}

func (l *Loop) fault(err error) {
	l.logger.Error("loop faulted", "error", err)
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.release(StateFaulted)
}

// release frees everything acquired by Load and moves to final, unless the
// loop already reached a terminal state.
func (l *Loop) release(final State) {
	l.mu.Lock()
	if l.state == StateStopped || l.state == StateFaulted {
		l.mu.Unlock()
		return
	}
	exec := l.exec
	wasRunning := l.state == StateRunning
	l.state = final
	l.exec.Video = nil
	l.exec.Engine = nil
	l.mu.Unlock()

	var errs []error
	if exec.Video != nil {
		errs = append(errs, exec.Video.Close())
	}
	if exec.Engine != nil {
		errs = append(errs, exec.Engine.Close())
	}
	if wasRunning {
		l.frame.Close()
		l.canvas.Close()
	}
	if l.ownTicker != nil {
		l.ownTicker.Stop()
	}
	if err := errors.Join(errs...); err != nil {
		l.logger.Warn("release failed", "error", err)
	}
	l.logger.Info("loop finished", "state", final)
}
