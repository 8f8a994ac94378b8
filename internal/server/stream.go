package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

// handleStream pushes every published FrameMetrics to the client. Inbound
// messages are discarded; a client close ends the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	sub := s.engine.Subscribe()
	defer s.engine.Unsubscribe(sub.ID)

	ctx := conn.CloseRead(r.Context())
	log := trace.Logger(ctx).With("subscriber", sub.ID)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			log.Info("websocket disconnected", "sent", sub.Stats().Sent, "dropped", sub.Stats().Dropped)
			return
		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			if err := s.writeFrame(ctx, conn, payload); err != nil {
				log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, StreamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, json.RawMessage(payload))
}

// handleVideo serves the annotated preview as an MJPEG stream.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+VideoBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	ticker := time.NewTicker(VideoFrameInterval)
	defer ticker.Stop()

	for {
		if frame, ok := s.engine.LatestPreview(); ok {
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", VideoBoundary); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
