package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

// CSVHeader is the column order of exported history.
var CSVHeader = []string{
	"timestamp", "status", "attention_percent", "focus_streak_seconds",
	"yaw", "pitch", "roll", "gaze_x", "gaze_y", "fps",
}

// WriteCSV writes frames as CSV with a header row.
func WriteCSV(w io.Writer, frames []attention.FrameMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range frames {
		row := []string{
			num(f.Timestamp), f.Status.String(), num(f.AttentionPercent), num(f.FocusStreakSeconds),
			num(f.Yaw), num(f.Pitch), num(f.Roll), num(f.GazeX), num(f.GazeY), num(f.FPS),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export for the given range.
func ExportFilename(start, end float64) string {
	return fmt.Sprintf("attention_%d_%d.csv", int64(start), int64(end))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
