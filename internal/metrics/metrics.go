package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framerelay_running",
		Help: "1 while the relay worker is running",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framerelay_active_sessions",
		Help: "Number of connected consumers (0 or 1)",
	})
	NegotiatedRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framerelay_negotiated_rate",
		Help: "Frame rate requested by the most recent consumer, 0 means unthrottled",
	})
)

// Counters
var (
	FramesPushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_frames_pushed_total",
		Help: "Total frames pushed by the producer",
	})
	FramesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_frames_dropped_total",
		Help: "Frames overwritten in the slot before a consumer took them",
	})
	FramesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_frames_sent_total",
		Help: "Total frames written to consumers",
	})
	BytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_bytes_sent_total",
		Help: "Total frame bytes written to consumers",
	})
	EmptyFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_empty_frames_total",
		Help: "Zero-length frames skipped without transmission",
	})
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_sessions_total",
		Help: "Total consumer connections accepted",
	})
	SessionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framerelay_session_errors_total",
		Help: "Sessions ended by a failure, by stage",
	}, []string{"reason"})
	AcceptLoopFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_accept_loop_failures_total",
		Help: "Accept loop exits caused by a fatal listener error",
	})
	SourceFramesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framerelay_source_frames_skipped_total",
		Help: "Frames a source discarded because the relay was not ready",
	})
)

// Histograms
var (
	SendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framerelay_send_duration_ms",
		Help:    "Time to write one frame to the consumer in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
	})
)
