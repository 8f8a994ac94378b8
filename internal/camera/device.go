package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/resilience"
)

// JPEGQuality is the encode quality for captured frames.
const JPEGQuality = 85

// DeviceOpener opens a local capture device through OpenCV.
type DeviceOpener struct {
	Retry resilience.RetryConfig
}

// Open opens the device, applies the requested format and verifies it is usable.
// Failures are retried, then returned as CAMERA_OPEN_FAILED.
func (o DeviceOpener) Open(ctx context.Context, cfg Config) (Source, error) {
	retry := o.Retry
	if retry.MaxRetries == 0 {
		retry = resilience.CameraOpenRetryConfig()
	}

	var dev *device
	err := resilience.Retry(ctx, retry, func() error {
		d, err := openDevice(cfg)
		if err != nil {
			return err
		}
		dev = d
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeCameraOpenFailed) {
			return nil, err
		}
		return nil, apperrors.Wrapf(err, apperrors.CodeCameraOpenFailed, "open camera %d", cfg.Index)
	}
	return dev, nil
}

func openDevice(cfg Config) (*device, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Index)
	if err != nil {
		if vc != nil {
			_ = vc.Close()
		}
		return nil, apperrors.Wrapf(err, apperrors.CodeCameraOpenFailed, "open camera %d", cfg.Index)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, apperrors.Newf(apperrors.CodeCameraOpenFailed, "camera %d not opened", cfg.Index).
			WithMetadata("index", fmt.Sprint(cfg.Index))
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	slog.Info("camera opened",
		"index", cfg.Index,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS))

	return &device{vc: vc, img: gocv.NewMat(), index: cfg.Index}, nil
}

// device is used by a single reader goroutine; only Close may race with it.
type device struct {
	vc    *gocv.VideoCapture
	img   gocv.Mat
	index int

	closeOnce sync.Once
	closeErr  error
}

func (d *device) Read() (Frame, error) {
	if ok := d.vc.Read(&d.img); !ok || d.img.Empty() {
		return Frame{}, ErrReadFailed
	}
	captured := time.Now()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.img, []int{gocv.IMWriteJpegQuality, JPEGQuality})
	if err != nil {
		return Frame{}, fmt.Errorf("%w: encode: %v", ErrReadFailed, err)
	}
	defer buf.Close()

	// GetBytes aliases C memory released by buf.Close.
	data := append([]byte(nil), buf.GetBytes()...)
	return Frame{Data: data, Width: d.img.Cols(), Height: d.img.Rows(), Captured: captured}, nil
}

func (d *device) Close() error {
	d.closeOnce.Do(func() {
		_ = d.img.Close()
		d.closeErr = d.vc.Close()
		slog.Info("camera released", "index", d.index)
	})
	return d.closeErr
}
