package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	apperrors "github.com/GriffinCanCode/attention-guard/internal/errors"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/storage"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

type healthResponse struct {
	Status      string        `json:"status"`
	CVRunning   bool          `json:"cv_running"`
	Calibrated  bool          `json:"calibrated"`
	Subscribers int           `json:"subscribers"`
	LastEvent   *events.Event `json:"last_event,omitempty"`
}

type historyResponse struct {
	Frames []attention.FrameMetrics `json:"frames"`
	Events []events.Event           `json:"events"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		CVRunning:   s.engine.Running(),
		Calibrated:  s.engine.Calibration().Ready,
		Subscribers: s.engine.Subscribers(),
	}
	if recent := s.engine.RecentEvents(1); len(recent) == 1 {
		resp.LastEvent = &recent[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Settings())
}

// handlePostSettings decodes over the current settings, so partial bodies
// only change the fields they name.
func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())

	next := s.engine.Settings()
	body := http.MaxBytesReader(w, r.Body, MaxSettingsBody)
	if err := json.NewDecoder(body).Decode(&next); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode settings"))
		return
	}
	if err := s.engine.UpdateSettings(next); err != nil {
		log.Warn("settings rejected", "error", err)
		writeError(w, err)
		return
	}
	if s.opts.SettingsPath != "" {
		if err := config.SaveSettings(s.opts.SettingsPath, next); err != nil {
			log.Error("settings persist failed", "path", s.opts.SettingsPath, "error", err)
			writeError(w, apperrors.Wrap(err, apperrors.CodeInternal, "persist settings"))
			return
		}
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	s.engine.RequestCalibration()
	trace.Logger(r.Context()).Info("calibration requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "CALIBRATION_REQUESTED"})
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Calibration())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	frames, err := s.store.Frames(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	evs, err := s.store.Events(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Frames: frames, Events: evs})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	start, end, err := s.timeRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	frames, err := s.store.Frames(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", storage.ExportFilename(start, end)))
	if err := storage.WriteCSV(w, frames); err != nil {
		trace.Logger(r.Context()).Error("csv export failed", "error", err)
	}
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	n := events.DefaultLogSize
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit %q", v).WithMetadata("field", "limit"))
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.engine.RecentEvents(n))
}

// timeRange reads start/end unix seconds. end defaults to now and start to
// DefaultHistoryRange before end.
func (s *Server) timeRange(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	end := float64(s.now().UnixNano()) / 1e9
	if v := q.Get("end"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, 0, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid end %q", v).WithMetadata("field", "end")
		}
		end = parsed
	}
	start := end - DefaultHistoryRange.Seconds()
	if v := q.Get("start"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, 0, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid start %q", v).WithMetadata("field", "start")
		}
		start = parsed
	}
	if start > end {
		return 0, 0, apperrors.New(apperrors.CodeInvalidArgument, "start after end").WithMetadata("field", "start")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error(), Code: string(apperrors.CodeInternal)}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Code = string(appErr.Code)
		body.Field = appErr.Metadata["field"]
	}
	writeJSON(w, httpStatus(err), body)
}

func httpStatus(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.CodeInvalidArgument, apperrors.CodeConfigInvalid:
		return http.StatusBadRequest
	case apperrors.CodeUnavailable, apperrors.CodeEstimatorUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
