// SPDX-License-Identifier: MIT
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the recorder's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordingsWritten prometheus.Counter
	RecordingsFailed  prometheus.Counter
	RecordingsDropped prometheus.Counter
	BytesWritten      prometheus.Counter
	RecordingSeconds  prometheus.Histogram
	WriteDuration     prometheus.Histogram
	QueueDepth        prometheus.Gauge
	Recording         prometheus.Gauge
}

// New registers all instruments on a private registry so several engines
// (or tests) can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordingsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "microtools_recordings_written_total",
			Help: "Total number of recordings written to disk",
		}),
		RecordingsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "microtools_recordings_failed_total",
			Help: "Total number of recordings that could not be encoded or written",
		}),
		RecordingsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "microtools_recordings_dropped_total",
			Help: "Total number of finished recordings refused by a full writer queue",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "microtools_bytes_written_total",
			Help: "Total payload bytes written to WAV files",
		}),
		RecordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "microtools_recording_duration_seconds",
			Help:    "Length of finished recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34 minutes
		}),
		WriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "microtools_write_duration_seconds",
			Help:    "Time spent encoding and writing one recording",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "microtools_writer_queue_depth",
			Help: "Finished recordings waiting for the writer",
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Name: "microtools_recording",
			Help: "1 while a recording session is active",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveWrite records a successful write.
func (m *Metrics) ObserveWrite(bytes int, seconds, writeSeconds float64) {
	if m == nil {
		return
	}
	m.RecordingsWritten.Inc()
	m.BytesWritten.Add(float64(bytes))
	m.RecordingSeconds.Observe(seconds)
	m.WriteDuration.Observe(writeSeconds)
}

func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.RecordingsFailed.Inc()
}

func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.RecordingsDropped.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) SetRecording(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Recording.Set(1)
	} else {
		m.Recording.Set(0)
	}
}
