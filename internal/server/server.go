package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
	"github.com/GriffinCanCode/attention-guard/internal/config"
	"github.com/GriffinCanCode/attention-guard/internal/metrics"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/broadcast"
	"github.com/GriffinCanCode/attention-guard/internal/orchestrator/events"
	"github.com/GriffinCanCode/attention-guard/internal/storage"
	"github.com/GriffinCanCode/attention-guard/internal/trace"
)

// Engine is the part of the orchestrator the transport uses.
type Engine interface {
	Running() bool
	Settings() config.Settings
	UpdateSettings(s config.Settings) error
	RequestCalibration()
	Calibration() attention.Progress
	Subscribe() *broadcast.Subscriber
	Unsubscribe(id string)
	Subscribers() int
	LatestPreview() ([]byte, bool)
	RecentEvents(n int) []events.Event
}

// Options configures a Server.
type Options struct {
	// SettingsPath receives accepted settings. Empty disables persistence.
	SettingsPath   string
	AllowedOrigins []string
}

// rateLimiter tracks request timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	lastSeen   time.Time
}

func (r *rateLimiter) allow(now time.Time) bool {
	cutoff := now.Add(-IPRateLimitWindow)
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid
	r.lastSeen = now

	if len(r.timestamps) >= IPRateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	engine Engine
	store  storage.Store
	opts   Options
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

// New creates a new server.
func New(engine Engine, store storage.Store, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		engine:   engine,
		store:    store,
		opts:     opts,
		now:      time.Now,
		limiters: make(map[string]*rateLimiter),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.limited(s.handlePostSettings))
	mux.HandleFunc("POST /api/calibrate", s.limited(s.handleCalibrate))
	mux.HandleFunc("GET /api/calibration", s.handleCalibration)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/events/recent", s.handleRecentEvents)
	mux.HandleFunc("GET /api/video", s.handleVideo)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Apply middleware: CORS -> trace -> metrics
	return corsMiddleware(s.opts.AllowedOrigins, trace.Middleware(metricsMiddleware(mux)))
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code. It forwards Flush and Hijack
// so streaming and WebSocket handlers keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// metricsMiddleware must wrap the mux directly so r.Pattern is populated.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// limited rejects callers exceeding IPRateLimitMessages per IPRateLimitWindow.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
			return
		}
		next(w, r)
	}
}

func (s *Server) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, l := range s.limiters {
		if now.Sub(l.lastSeen) > IPRateLimitEntryTTL {
			delete(s.limiters, k)
		}
	}
	l, ok := s.limiters[ip]
	if !ok {
		l = &rateLimiter{}
		s.limiters[ip] = l
	}
	return l.allow(now)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
