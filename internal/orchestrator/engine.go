package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/camera"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/estimator"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/broadcast"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/syncx"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

// Annotator renders the preview overlay for a frame.
type Annotator interface {
	Annotate(frame []byte, est *attention.Estimate, m attention.FrameMetrics) ([]byte, error)
}

// Recorder persists frames and events. Implementations must not block.
type Recorder interface {
	AddFrame(f attention.FrameMetrics)
	AddEvent(ev events.Event)
}

// Deps are the collaborators of an Engine. Annotator and Recorder are optional.
type Deps struct {
	Camera    camera.Opener
	Estimator estimator.Opener
	Annotator Annotator
	Recorder  Recorder
	Hub       *broadcast.Hub
	Events    *events.Log

	// SkipSimilar reuses the previous estimate for perceptually identical frames.
	SkipSimilar bool
}

// Engine owns the acquisition worker and the state shared with transports.
type Engine struct {
	deps Deps

	settings    *syncx.RWGuard[config.Settings]
	calibration *syncx.RWGuard[attention.Progress]
	preview     syncx.Latest
	calibrate   chan struct{}
	running     atomic.Bool

	// calib persists across restarts and is touched only by the active worker.
	calib *attention.Calibrator

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	stopping    bool
	stopTimeout time.Duration
}

// New creates a stopped engine.
func New(deps Deps, settings config.Settings) *Engine {
	if deps.Hub == nil {
		deps.Hub = broadcast.NewHub(broadcast.QueueCapacity)
	}
	if deps.Events == nil {
		deps.Events = events.NewLog(events.DefaultLogSize)
	}
	progress := attention.Progress{SampleFrames: settings.Calibration.SampleFrames}
	return &Engine{
		deps:        deps,
		settings:    syncx.NewGuard(settings),
		calibration: syncx.NewGuard(progress),
		calibrate:   make(chan struct{}, 1),
		calib:       attention.NewCalibrator(),
		stopTimeout: StopTimeout,
	}
}

// Start opens the estimator and the camera and launches the worker. It is a
// no-op when the engine is already running. A camera that cannot be opened
// is reported as CAMERA_OPEN_FAILED and the estimator is released. A worker
// that outlived its Stop still owns the devices; Start then fails with
// ALREADY_RUNNING until it exits.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		select {
		case <-e.done:
			e.cancel, e.done, e.stopping = nil, nil, false
		default:
			if e.stopping {
				return apperrors.New(apperrors.CodeAlreadyRunning, "previous worker has not exited")
			}
			return nil
		}
	}

	ctx, span := trace.StartSpan(ctx, "engine_start")
	defer span.End()
	log := trace.Logger(ctx)

	est, err := e.deps.Estimator.Open(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
		return err
	}
	smoothed := estimator.NewSmoothed(est, func() float64 {
		return e.settings.Get().Attention.SmoothingAlpha
	})

	cam := e.settings.Get().Camera
	src, err := e.deps.Camera.Open(ctx, camera.Config{
		Index:  cam.Index,
		Width:  cam.Width,
		Height: cam.Height,
		FPS:    cam.FPS,
	})
	if err != nil {
		_ = smoothed.Close()
		span.SetAttr("error", err.Error())
		if !apperrors.IsCode(err, apperrors.CodeCameraOpenFailed) {
			err = apperrors.Wrapf(err, apperrors.CodeCameraOpenFailed, "open camera %d", cam.Index)
		}
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.running.Store(true)
	metrics.EngineRunning.Set(1)

	l := newLoop(e, src, smoothed)
	go func() {
		defer close(done)
		defer func() {
			e.running.Store(false)
			metrics.EngineRunning.Set(0)
		}()
		l.run(runCtx)
	}()

	log.Info("engine started", "camera", cam.Index, "skip_similar", e.deps.SkipSimilar)
	return nil
}

// Stop signals the worker and waits up to StopTimeout for it to release the
// camera and estimator. A worker that misses the deadline stays tracked so a
// later Stop or Start can wait on it. Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.stopping = true

	log := trace.Logger(context.Background())
	select {
	case <-e.done:
		log.Info("engine stopped")
		e.cancel, e.done, e.stopping = nil, nil, false
	case <-time.After(e.stopTimeout):
		log.Warn("engine stop timed out", "timeout", e.stopTimeout)
	}
}

// Close stops the worker and disconnects every subscriber. Their queues are
// closed so stream readers return.
func (e *Engine) Close() {
	e.Stop()
	for id := range e.deps.Hub.Stats() {
		metrics.ForgetSubscriber(id)
	}
	e.deps.Hub.Close()
	metrics.Subscribers.Set(0)
}

// Running reports whether the worker is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Settings returns the current settings.
func (e *Engine) Settings() config.Settings { return e.settings.Get() }

// UpdateSettings validates s and swaps it in whole. The worker applies window
// and hysteresis changes on its next iteration. Camera changes apply on the next Start.
func (e *Engine) UpdateSettings(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.settings.Set(s)
	trace.Logger(context.Background()).Info("settings updated",
		"window_seconds", s.Attention.WindowSeconds,
		"hysteresis_frames", s.Attention.HysteresisFrames)
	return nil
}

// RequestCalibration asks the worker to start a new calibration cycle.
// Requests made while one is pending collapse into it.
func (e *Engine) RequestCalibration() {
	select {
	case e.calibrate <- struct{}{}:
	default:
	}
}

// Calibration returns the baseline in force and the progress of any running cycle.
func (e *Engine) Calibration() attention.Progress { return e.calibration.Get() }

// Subscribe registers a metrics subscriber.
func (e *Engine) Subscribe() *broadcast.Subscriber {
	sub := e.deps.Hub.Subscribe()
	metrics.Subscribers.Set(float64(e.deps.Hub.Len()))
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (e *Engine) Unsubscribe(id string) {
	e.deps.Hub.Unsubscribe(id)
	metrics.ForgetSubscriber(id)
	metrics.Subscribers.Set(float64(e.deps.Hub.Len()))
}

// Subscribers returns the number of active subscribers.
func (e *Engine) Subscribers() int { return e.deps.Hub.Len() }

// LatestPreview returns a copy of the most recent annotated JPEG.
func (e *Engine) LatestPreview() ([]byte, bool) {
	data, _, ok := e.preview.Load()
	return data, ok
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (e *Engine) RecentEvents(n int) []events.Event {
	if n <= 0 {
		n = RecentEventsDefault
	}
	return e.deps.Events.Recent(n)
}
