// Package metrics declares the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed counts frames that produced metrics.
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attention_frames_processed_total",
			Help: "Total number of frames classified",
		},
	)

	// CurrentStatus is 1 for the current stable status and 0 otherwise.
	CurrentStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attention_status",
			Help: "Current stable attention status (1 = active)",
		},
		[]string{"status"},
	)

	AttentionPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attention_percent",
			Help: "Share of the trailing window spent at screen",
		},
	)

	FocusStreakSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attention_focus_streak_seconds",
			Help: "Current uninterrupted at-screen run",
		},
	)

	LoopFPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attention_loop_fps",
			Help: "Instantaneous acquisition loop rate",
		},
	)

	// EventsLogged counts transition and calibration events.
	EventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attention_events_total",
			Help: "Total number of attention events",
		},
		[]string{"type"},
	)

	CameraReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attention_camera_read_failures_total",
			Help: "Total number of failed camera reads",
		},
	)

	// EstimatorErrors counts skipped frames by error code.
	EstimatorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attention_estimator_errors_total",
			Help: "Total number of frames skipped because estimation failed",
		},
		[]string{"code"},
	)

	EstimatorLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attention_estimator_latency_seconds",
			Help:    "Estimator round-trip latency in seconds",
			Buckets: []float64{.005, .01, .02, .04, .08, .16, .32, .64},
		},
	)

	EstimatesReused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attention_estimates_reused_total",
			Help: "Total number of frames answered from the similar-frame cache",
		},
	)

	BroadcastSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attention_broadcast_sent_total",
			Help: "Total number of payloads enqueued to subscribers",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attention_broadcast_dropped_total",
			Help: "Total number of payloads evicted from full subscriber queues",
		},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attention_subscribers",
			Help: "Number of live stream subscribers",
		},
	)

	// SubscriberSent and SubscriberDropped mirror each live subscriber's queue counters.
	SubscriberSent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attention_subscriber_sent",
			Help: "Payloads enqueued to one subscriber",
		},
		[]string{"subscriber"},
	)

	SubscriberDropped = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attention_subscriber_dropped",
			Help: "Payloads evicted from one subscriber's full queue",
		},
		[]string{"subscriber"},
	)

	// StorageOperations counts history store calls.
	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attention_storage_operations_total",
			Help: "Total number of history store operations",
		},
		[]string{"operation", "status"},
	)

	// BreakerState mirrors circuit breaker state (0 closed, 1 open, 2 half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attention_breaker_state",
			Help: "Circuit breaker state",
		},
		[]string{"breaker"},
	)

	EngineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attention_engine_running",
			Help: "1 while the acquisition loop is running",
		},
	)

	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// SetStatus marks one status label active and clears the others.
func SetStatus(active string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1
		}
		CurrentStatus.WithLabelValues(s).Set(v)
	}
}

// ObserveStorage records the outcome of a store call.
func ObserveStorage(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperations.WithLabelValues(operation, status).Inc()
}

// SetSubscriber records the delivery counters of one subscriber.
func SetSubscriber(id string, sent, dropped uint64) {
	SubscriberSent.WithLabelValues(id).Set(float64(sent))
	SubscriberDropped.WithLabelValues(id).Set(float64(dropped))
}

// ForgetSubscriber drops the series of a departed subscriber.
func ForgetSubscriber(id string) {
	SubscriberSent.DeleteLabelValues(id)
	SubscriberDropped.DeleteLabelValues(id)
}
