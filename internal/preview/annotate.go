// Package preview draws the live status overlay onto captured frames.
package preview

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

const (
	ArrowLength = 80
	TextScale   = 0.7
	JPEGQuality = 80
)

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	arrowColor = color.RGBA{255, 255, 0, 255}
	textColor  = color.RGBA{255, 255, 255, 255}
	textOrigin = image.Pt(20, 40)
)

// Annotator renders the overlay with OpenCV. It holds no state and is safe
// for concurrent use.
type Annotator struct{}

func New() *Annotator { return &Annotator{} }

// Annotate decodes frame, draws the face box, gaze arrow and status line, and
// returns the result as JPEG. est may be nil when no face was found.
func (a *Annotator) Annotate(frame []byte, est *attention.Estimate, m attention.FrameMetrics) ([]byte, error) {
	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("decode frame: empty image")
	}

	if est != nil && !est.BBox.Empty() {
		gocv.Rectangle(&img, est.BBox, boxColor, 2)
		from, to := GazeArrow(est)
		gocv.ArrowedLine(&img, from, to, arrowColor, 2)
	}
	gocv.PutText(&img, StatusLine(m), textOrigin, gocv.FontHersheySimplex, TextScale, textColor, 2)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// StatusLine formats the overlay text.
func StatusLine(m attention.FrameMetrics) string {
	return fmt.Sprintf("%s | attention %.1f%% | streak %.1fs | fps %.1f",
		m.Status, m.AttentionPercent, m.FocusStreakSeconds, m.FPS)
}

// GazeArrow returns an arrow from the face box centre along the gaze offset.
func GazeArrow(est *attention.Estimate) (from, to image.Point) {
	b := est.BBox
	from = image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	to = image.Pt(
		from.X+int(est.GazeX*ArrowLength),
		from.Y+int(est.GazeY*ArrowLength),
	)
	return from, to
}
