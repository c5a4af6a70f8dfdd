package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the link daemon
type Metrics struct {
	// UDP ingest metrics
	DatagramsReceived prometheus.Counter
	LLRsReceived      prometheus.Counter
	IngestErrors      prometheus.Counter

	// Link session metrics
	ActiveLinks    prometheus.Gauge
	LinksCreated   prometheus.Counter
	LinksDestroyed prometheus.Counter
	LinkDuration   prometheus.Histogram

	// FEC decode metrics
	FramesDecoded    *prometheus.CounterVec
	DecodeIterations prometheus.Histogram
	NonConverged     prometheus.Counter
	ChannelMeanLLR   prometheus.Histogram

	// Superframe and crypto metrics
	SuperframesCompleted prometheus.Counter
	TagFailures          prometheus.Counter
	SignatureFailures    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// UDP ingest metrics
		DatagramsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_datagrams_received_total",
			Help: "Total number of soft-bit UDP datagrams received",
		}),
		LLRsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_llrs_received_total",
			Help: "Total number of soft decisions received",
		}),
		IngestErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_ingest_errors_total",
			Help: "Total number of datagrams rejected at ingest",
		}),

		// Link session metrics
		ActiveLinks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sleipnir_active_links",
			Help: "Current number of active link sessions",
		}),
		LinksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_links_created_total",
			Help: "Total number of link sessions created",
		}),
		LinksDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_links_destroyed_total",
			Help: "Total number of link sessions destroyed",
		}),
		LinkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleipnir_link_duration_seconds",
			Help:    "Duration of link sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// FEC decode metrics
		FramesDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sleipnir_frames_decoded_total",
			Help: "Total number of frames decoded, by frame kind",
		}, []string{"kind"}),
		DecodeIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleipnir_decode_iterations",
			Help:    "Belief-propagation iterations per decoded frame",
			Buckets: prometheus.LinearBuckets(1, 2, 13), // 1 to 25
		}),
		NonConverged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_decode_non_converged_total",
			Help: "Total number of frames returned without a zero syndrome",
		}),
		ChannelMeanLLR: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sleipnir_channel_mean_llr",
			Help:    "Mean absolute log-likelihood ratio per frame, a channel quality estimate",
			Buckets: prometheus.LinearBuckets(0, 2, 13), // 0 to 24
		}),

		// Superframe and crypto metrics
		SuperframesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_superframes_completed_total",
			Help: "Total number of fully reassembled superframes",
		}),
		TagFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_tag_failures_total",
			Help: "Total number of frames whose integrity tag failed verification",
		}),
		SignatureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sleipnir_signature_failures_total",
			Help: "Total number of superframes whose authentication signature failed",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sleipnir_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sleipnir_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordDatagram records one received soft-bit datagram and its LLR count
func (m *Metrics) RecordDatagram(llrs int) {
	m.DatagramsReceived.Inc()
	m.LLRsReceived.Add(float64(llrs))
}

// RecordIngestError increments the ingest errors counter
func (m *Metrics) RecordIngestError() {
	m.IngestErrors.Inc()
}

// SetActiveLinks sets the current number of active link sessions
func (m *Metrics) SetActiveLinks(count int) {
	m.ActiveLinks.Set(float64(count))
}

// RecordLinkCreated increments the links created counter
func (m *Metrics) RecordLinkCreated() {
	m.LinksCreated.Inc()
}

// RecordLinkDestroyed increments the links destroyed counter and records duration
func (m *Metrics) RecordLinkDestroyed(durationSeconds float64) {
	m.LinksDestroyed.Inc()
	m.LinkDuration.Observe(durationSeconds)
}

// RecordFrameDecoded records one decoded frame with its decoder statistics
func (m *Metrics) RecordFrameDecoded(kind string, converged bool, iterations int, meanLLR float64) {
	m.FramesDecoded.WithLabelValues(kind).Inc()
	if iterations > 0 {
		m.DecodeIterations.Observe(float64(iterations))
	}
	if !converged {
		m.NonConverged.Inc()
	}
	m.ChannelMeanLLR.Observe(meanLLR)
}

// RecordSuperframe records one completed superframe and its verification outcome
func (m *Metrics) RecordSuperframe(signatureValid, signingEnabled bool) {
	m.SuperframesCompleted.Inc()
	if signingEnabled && !signatureValid {
		m.SignatureFailures.Inc()
	}
}

// RecordTagFailure increments the frame tag failure counter
func (m *Metrics) RecordTagFailure() {
	m.TagFailures.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
