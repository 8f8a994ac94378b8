package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/camera"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/estimator"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
)

var (
	atScreen = &attention.Estimate{Yaw: 1, Pitch: 1}
	away     = &attention.Estimate{Yaw: 60, Pitch: 1}
)

type fakeSource struct {
	mu       sync.Mutex
	base     time.Time
	reads    int
	failures int
	closed   atomic.Int32

	// block, when set, holds every Read until it is closed.
	block   chan struct{}
	waiting atomic.Bool
}

func (s *fakeSource) Read() (camera.Frame, error) {
	if s.block != nil {
		s.waiting.Store(true)
		<-s.block
	}
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.reads <= s.failures {
		return camera.Frame{}, camera.ErrReadFailed
	}
	return camera.Frame{
		Data:     []byte{0xff, 0xd8, byte(s.reads)},
		Width:    4,
		Height:   4,
		Captured: s.base.Add(time.Duration(s.reads) * 100 * time.Millisecond),
	}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Add(1)
	return nil
}

func (s *fakeSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type fakeCamera struct {
	src *fakeSource
	err error
	cfg camera.Config
}

func (c *fakeCamera) Open(_ context.Context, cfg camera.Config) (camera.Source, error) {
	c.cfg = cfg
	if c.err != nil {
		return nil, c.err
	}
	return c.src, nil
}

type fakeEstimator struct {
	mu     sync.Mutex
	next   *attention.Estimate
	err    error
	calls  int
	closed atomic.Int32
}

func (f *fakeEstimator) Estimate(context.Context, []byte) (*attention.Estimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.next == nil {
		return nil, nil
	}
	est := *f.next
	return &est, nil
}

func (f *fakeEstimator) set(est *attention.Estimate, err error) {
	f.mu.Lock()
	f.next, f.err = est, err
	f.mu.Unlock()
}

func (f *fakeEstimator) Close() error {
	f.closed.Add(1)
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	frames []attention.FrameMetrics
	events []events.Event
}

func (r *fakeRecorder) AddFrame(f attention.FrameMetrics) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *fakeRecorder) AddEvent(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *fakeRecorder) Frames() []attention.FrameMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]attention.FrameMetrics(nil), r.frames...)
}

type stampAnnotator struct{}

func (stampAnnotator) Annotate(frame []byte, _ *attention.Estimate, m attention.FrameMetrics) ([]byte, error) {
	return append([]byte(m.Status.String()+":"), frame...), nil
}

type harness struct {
	engine *Engine
	src    *fakeSource
	cam    *fakeCamera
	est    *fakeEstimator
	rec    *fakeRecorder
}

func newHarness(t *testing.T, mutate func(*config.Settings)) *harness {
	t.Helper()
	s := config.DefaultSettings()
	s.Attention.HysteresisFrames = 1
	s.Calibration.SampleFrames = 3
	if mutate != nil {
		mutate(&s)
	}
	h := &harness{
		src: &fakeSource{base: time.Now()},
		est: &fakeEstimator{},
		rec: &fakeRecorder{},
	}
	h.cam = &fakeCamera{src: h.src}
	h.engine = New(Deps{
		Camera: h.cam,
		Estimator: estimator.OpenerFunc(func(context.Context) (estimator.Estimator, error) {
			return h.est, nil
		}),
		Annotator: stampAnnotator{},
		Recorder:  h.rec,
	}, s)
	t.Cleanup(h.engine.Stop)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasEvent(e *Engine, typ events.Type) bool {
	for _, ev := range e.RecentEvents(events.DefaultLogSize) {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func TestEngineEmitsTransitions(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !h.engine.Running() {
		t.Fatal("Running() = false after Start")
	}

	waitFor(t, "no-face frames", func() bool { return len(h.rec.Frames()) >= 3 })
	h.est.set(atScreen, nil)
	waitFor(t, "NO_FACE_END", func() bool { return hasEvent(h.engine, events.NoFaceEnd) })
	h.est.set(away, nil)
	waitFor(t, "AWAY_START", func() bool { return hasEvent(h.engine, events.AwayStart) })
	h.est.set(atScreen, nil)
	waitFor(t, "AWAY_END", func() bool { return hasEvent(h.engine, events.AwayEnd) })

	var got []events.Type
	for _, ev := range h.engine.RecentEvents(events.DefaultLogSize) {
		got = append(got, ev.Type)
	}
	want := []events.Type{events.NoFaceEnd, events.AwayStart, events.AwayEnd}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEngineFrameMetrics(t *testing.T) {
	h := newHarness(t, nil)
	h.est.set(atScreen, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "frames", func() bool { return len(h.rec.Frames()) >= 5 })
	frames := h.rec.Frames()
	last := frames[len(frames)-1]
	if last.Status != attention.AtScreen {
		t.Errorf("Status = %s, want AT_SCREEN", last.Status)
	}
	if last.AttentionPercent != 100 {
		t.Errorf("AttentionPercent = %v, want 100", last.AttentionPercent)
	}
	if last.FPS < 9.9 || last.FPS > 10.1 {
		t.Errorf("FPS = %v, want ~10", last.FPS)
	}
	if last.Yaw != 1 {
		t.Errorf("Yaw = %v, want 1", last.Yaw)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Timestamp < frames[i-1].Timestamp {
			t.Fatalf("timestamps not monotonic at %d", i)
		}
	}
}

func TestEngineBroadcastsAndPreview(t *testing.T) {
	h := newHarness(t, nil)
	h.est.set(atScreen, nil)
	sub := h.engine.Subscribe()
	defer h.engine.Unsubscribe(sub.ID)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case payload := <-sub.C():
		var m attention.FrameMetrics
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("payload not JSON: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no payload received")
	}

	waitFor(t, "preview", func() bool {
		data, ok := h.engine.LatestPreview()
		return ok && strings.HasPrefix(string(data), "AT_SCREEN:")
	})
}

func TestEngineStartCameraFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.cam.err = errors.New("no such device")

	err := h.engine.Start(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeCameraOpenFailed) {
		t.Fatalf("Start() error = %v, want CAMERA_OPEN_FAILED", err)
	}
	if h.engine.Running() {
		t.Error("Running() = true after failed Start")
	}
	if n := h.est.closed.Load(); n != 1 {
		t.Errorf("estimator closed %d times, want 1", n)
	}
}

func TestEngineStartEstimatorFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.deps.Estimator = estimator.OpenerFunc(func(context.Context) (estimator.Estimator, error) {
		return nil, apperrors.New(apperrors.CodeEstimatorUnavailable, "down")
	})

	err := h.engine.Start(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeEstimatorUnavailable) {
		t.Fatalf("Start() error = %v, want ESTIMATOR_UNAVAILABLE", err)
	}
	if h.cam.cfg != (camera.Config{}) {
		t.Error("camera opened although estimator failed")
	}
}

func TestEngineSurvivesReadFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.src.failures = 4
	h.est.set(atScreen, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "frame after failures", func() bool { return len(h.rec.Frames()) >= 1 })
	if h.src.Reads() <= 4 {
		t.Errorf("reads = %d, want > 4", h.src.Reads())
	}
}

func TestEngineSkipsFramesOnEstimatorError(t *testing.T) {
	h := newHarness(t, nil)
	h.est.set(nil, apperrors.New(apperrors.CodeEstimatorFailed, "boom"))
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "estimator calls", func() bool {
		h.est.mu.Lock()
		defer h.est.mu.Unlock()
		return h.est.calls >= 5
	})
	if n := len(h.rec.Frames()); n != 0 {
		t.Errorf("recorded %d frames while estimator failing, want 0", n)
	}

	h.est.set(atScreen, nil)
	waitFor(t, "recovery", func() bool { return len(h.rec.Frames()) >= 1 })
}

func TestEngineCalibration(t *testing.T) {
	h := newHarness(t, nil)
	h.est.set(&attention.Estimate{Yaw: 10, Pitch: -4}, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h.engine.Calibration().Ready {
		t.Fatal("baseline ready before calibration")
	}

	h.engine.RequestCalibration()
	waitFor(t, "calibration", func() bool { return h.engine.Calibration().Ready })

	base := h.engine.Calibration()
	if base.Yaw != 10 || base.Pitch != -4 {
		t.Errorf("baseline = %+v, want yaw 10 pitch -4", base)
	}
	if base.InProgress || base.Collected != 0 {
		t.Errorf("progress after completion = %+v, want idle", base)
	}
	if !hasEvent(h.engine, events.CalibrationDone) {
		t.Error("CALIBRATION_DONE not logged")
	}
	// Relative to the new baseline the pose is centred.
	waitFor(t, "at screen", func() bool {
		frames := h.rec.Frames()
		return len(frames) > 0 && frames[len(frames)-1].Status == attention.AtScreen
	})
}

func TestEngineCalibrationProgress(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.Calibration.SampleFrames = 100000 })
	h.est.set(atScreen, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p := h.engine.Calibration(); p.InProgress || p.SampleFrames != 100000 {
		t.Fatalf("Calibration() before request = %+v", p)
	}

	h.engine.RequestCalibration()
	waitFor(t, "samples collected", func() bool {
		p := h.engine.Calibration()
		return p.InProgress && p.Collected >= 3
	})
	p := h.engine.Calibration()
	if p.Ready {
		t.Error("baseline ready before the cycle completed")
	}
	if p.SampleFrames != 100000 {
		t.Errorf("SampleFrames = %d, want 100000", p.SampleFrames)
	}
}

func TestEngineUpdateSettings(t *testing.T) {
	h := newHarness(t, nil)

	bad := h.engine.Settings()
	bad.Attention.WindowSeconds = 0
	if err := h.engine.UpdateSettings(bad); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Fatalf("UpdateSettings(invalid) error = %v, want CONFIG_INVALID", err)
	}
	if h.engine.Settings().Attention.WindowSeconds != 30 {
		t.Error("invalid settings were applied")
	}

	h.est.set(atScreen, nil)
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "at screen", func() bool { return len(h.rec.Frames()) >= 2 })

	s := h.engine.Settings()
	s.Attention.HysteresisFrames = 1000
	if err := h.engine.UpdateSettings(s); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	// Let any in-flight iteration finish under the old settings.
	seen := len(h.rec.Frames())
	waitFor(t, "settings applied", func() bool { return len(h.rec.Frames()) >= seen+2 })

	h.est.set(away, nil)
	seen = len(h.rec.Frames())
	waitFor(t, "more frames", func() bool { return len(h.rec.Frames()) >= seen+20 })
	for _, f := range h.rec.Frames()[seen:] {
		if f.Status != attention.AtScreen {
			t.Fatalf("status flipped to %s despite hysteresis 1000", f.Status)
		}
	}
}

func TestEngineStopReleasesAndRestarts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	h.engine.Stop()
	if h.engine.Running() {
		t.Error("Running() = true after Stop")
	}
	if n := h.src.closed.Load(); n != 1 {
		t.Errorf("camera closed %d times, want 1", n)
	}
	if n := h.est.closed.Load(); n != 1 {
		t.Errorf("estimator closed %d times, want 1", n)
	}
	h.engine.Stop()

	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if !h.engine.Running() {
		t.Error("Running() = false after restart")
	}
}

func TestRequestCalibrationCollapses(t *testing.T) {
	e := New(Deps{}, config.DefaultSettings())
	e.RequestCalibration()
	e.RequestCalibration()
	if len(e.calibrate) != 1 {
		t.Errorf("pending requests = %d, want 1", len(e.calibrate))
	}
}

func TestEngineStopTimeoutBlocksRestart(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.stopTimeout = 20 * time.Millisecond
	release := make(chan struct{})
	h.src.block = release

	ctx := context.Background()
	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "blocked read", h.src.waiting.Load)

	h.engine.Stop()
	if !h.engine.Running() {
		t.Error("Running() = false while the worker still holds the camera")
	}
	if err := h.engine.Start(ctx); !apperrors.IsCode(err, apperrors.CodeAlreadyRunning) {
		t.Fatalf("Start() during slow stop error = %v, want ALREADY_RUNNING", err)
	}
	if n := h.src.closed.Load(); n != 0 {
		t.Errorf("camera closed %d times before the worker exited, want 0", n)
	}

	close(release)
	waitFor(t, "worker exit", func() bool { return !h.engine.Running() })
	if n := h.src.closed.Load(); n != 1 {
		t.Errorf("camera closed %d times, want 1", n)
	}
	if err := h.engine.Start(ctx); err != nil {
		t.Fatalf("Start() after worker exit error = %v", err)
	}
	if !h.engine.Running() {
		t.Error("Running() = false after restart")
	}
}

func TestEngineCloseDisconnectsSubscribers(t *testing.T) {
	h := newHarness(t, nil)
	h.est.set(atScreen, nil)
	sub := h.engine.Subscribe()
	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.engine.Close()
	if h.engine.Running() {
		t.Error("Running() = true after Close")
	}
	if n := h.engine.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", n)
	}

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscriber queue not closed by Close")
		}
	}
}
