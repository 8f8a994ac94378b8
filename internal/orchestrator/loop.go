package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/camera"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/estimator"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/frames"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

var statusNames = []string{
	attention.NoFace.String(),
	attention.AtScreen.String(),
	attention.LookingAway.String(),
}

// loop is the worker-owned state. None of it is shared.
type loop struct {
	e      *Engine
	src    camera.Source
	est    estimator.Estimator
	reuser *frames.Reuser

	window *attention.Window
	hyst   *attention.Hysteresis
	last   attention.Status
	lastTS float64
	seq    uint64
}

func newLoop(e *Engine, src camera.Source, est estimator.Estimator) *loop {
	s := e.settings.Get()
	l := &loop{
		e:      e,
		src:    src,
		est:    est,
		window: attention.NewWindow(s.Attention.WindowSeconds),
		hyst:   attention.NewHysteresis(s.Attention.HysteresisFrames),
		last:   attention.NoFace,
		lastTS: unixSeconds(time.Now()),
	}
	if e.deps.SkipSimilar {
		l.reuser = frames.NewReuser(frames.MaxHashDistance, frames.MaxConsecutiveReuse)
	}
	return l
}

func (l *loop) run(ctx context.Context) {
	log := trace.Logger(ctx)
	defer func() {
		if err := l.src.Close(); err != nil {
			log.Warn("camera close failed", "error", err)
		}
		if err := l.est.Close(); err != nil {
			log.Warn("estimator close failed", "error", err)
		}
	}()

	for ctx.Err() == nil {
		l.step(ctx)
	}
}

func (l *loop) step(ctx context.Context) {
	s := l.e.settings.Get()
	l.apply(ctx, s)

	frame, err := l.src.Read()
	if err != nil {
		metrics.CameraReadFailures.Inc()
		if !errors.Is(err, camera.ErrReadFailed) {
			trace.Logger(ctx).Warn("camera read error", "error", err)
		}
		sleep(ctx, CameraRetryDelay)
		return
	}

	if frame.Captured.IsZero() {
		frame.Captured = time.Now()
	}
	ts := unixSeconds(frame.Captured)
	if ts < l.lastTS {
		ts = l.lastTS
	}
	fps := 0.0
	if dt := ts - l.lastTS; dt > 0 {
		fps = 1 / dt
	}
	l.lastTS = ts

	l.seq++
	ctx = trace.WithFrame(ctx, l.seq)

	est, err := l.estimate(ctx, frame.Data)
	if err != nil {
		metrics.EstimatorErrors.WithLabelValues(string(codeOf(err))).Inc()
		trace.Logger(ctx).Debug("frame skipped", "error", err)
		return
	}

	if l.e.calib.Accumulating() {
		if l.e.calib.Observe(est, s.Calibration.SampleFrames) {
			base := l.e.calib.Baseline()
			l.record(events.Calibrated(ts, base))
			trace.Logger(ctx).Info("calibration complete",
				"yaw", base.Yaw, "pitch", base.Pitch, "gaze_x", base.GazeX, "gaze_y", base.GazeY)
		}
		l.publishCalibration(s.Calibration.SampleFrames)
	}

	raw := attention.Classify(est, l.e.calib.Baseline(), s.Thresholds())
	stable := l.hyst.Update(raw)
	l.window.Add(ts, stable)
	pct, streak := l.window.Compute(ts)

	m := attention.FrameMetrics{
		Timestamp:          ts,
		Status:             stable,
		AttentionPercent:   pct,
		FocusStreakSeconds: streak,
		FPS:                fps,
	}
	if est != nil {
		m.Yaw, m.Pitch, m.Roll = est.Yaw, est.Pitch, est.Roll
		m.GazeX, m.GazeY = est.GazeX, est.GazeY
	}

	for _, t := range events.Detect(l.last, stable) {
		l.record(events.Event{Timestamp: ts, Type: t})
	}
	l.last = stable

	if l.e.deps.Recorder != nil {
		l.e.deps.Recorder.AddFrame(m)
	}
	l.updatePreview(ctx, frame, est, m)
	l.publish(ctx, m)

	metrics.FramesProcessed.Inc()
	metrics.SetStatus(stable.String(), statusNames...)
	metrics.AttentionPercent.Set(pct)
	metrics.FocusStreakSeconds.Set(streak)
	metrics.LoopFPS.Set(fps)
}

// apply propagates window and hysteresis changes from the settings handle.
func (l *loop) apply(ctx context.Context, s config.Settings) {
	if s.Attention.WindowSeconds != l.window.Seconds() {
		l.window.SetWindowSeconds(s.Attention.WindowSeconds)
	}
	if s.Attention.HysteresisFrames != l.hyst.Frames() {
		l.hyst.SetFrames(s.Attention.HysteresisFrames)
	}
	select {
	case <-l.e.calibrate:
		l.e.calib.Request()
		l.publishCalibration(s.Calibration.SampleFrames)
		trace.Logger(ctx).Info("calibration requested")
	default:
	}
}

func (l *loop) publishCalibration(sampleFrames int) {
	l.e.calibration.Set(attention.Progress{
		Baseline:     l.e.calib.Baseline(),
		InProgress:   l.e.calib.Accumulating(),
		Collected:    l.e.calib.Collected(),
		SampleFrames: sampleFrames,
	})
}

func (l *loop) estimate(ctx context.Context, jpeg []byte) (*attention.Estimate, error) {
	if l.reuser != nil {
		if est, ok := l.reuser.Lookup(jpeg); ok {
			metrics.EstimatesReused.Inc()
			return est, nil
		}
	}
	est, err := l.est.Estimate(ctx, jpeg)
	if err != nil {
		return nil, err
	}
	if l.reuser != nil {
		l.reuser.Store(est)
	}
	return est, nil
}

func (l *loop) record(ev events.Event) {
	l.e.deps.Events.Add(ev)
	if l.e.deps.Recorder != nil {
		l.e.deps.Recorder.AddEvent(ev)
	}
	metrics.EventsLogged.WithLabelValues(string(ev.Type)).Inc()
}

func (l *loop) updatePreview(ctx context.Context, frame camera.Frame, est *attention.Estimate, m attention.FrameMetrics) {
	out := frame.Data
	if l.e.deps.Annotator != nil {
		annotated, err := l.e.deps.Annotator.Annotate(frame.Data, est, m)
		if err != nil {
			trace.Logger(ctx).Debug("preview annotate failed", "error", err)
		} else {
			out = annotated
		}
	}
	l.e.preview.Store(out, frame.Captured)
}

func (l *loop) publish(ctx context.Context, m attention.FrameMetrics) {
	payload, err := json.Marshal(m)
	if err != nil {
		trace.Logger(ctx).Error("metrics marshal failed", "error", err)
		return
	}
	sent, dropped := l.e.deps.Hub.Publish(payload)
	metrics.BroadcastSent.Add(float64(sent))
	metrics.BroadcastDropped.Add(float64(dropped))
	for id, st := range l.e.deps.Hub.Stats() {
		metrics.SetSubscriber(id, st.Sent, st.Dropped)
	}
}

func codeOf(err error) apperrors.Code {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperrors.CodeUnknown
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
