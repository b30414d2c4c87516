package metrics

import (
	"net/http"
	"sync/atomic"

	"crowdwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Live camera counters
	FramesRead      atomic.Uint64
	FramesDetected  atomic.Uint64
	FramesDropped   atomic.Uint64
	DetectionErrors atomic.Uint64
	StreamClients   atomic.Int64

	livePeople prometheus.Gauge
	detections *prometheus.CounterVec
	uploads    *prometheus.CounterVec
	reports    *prometheus.CounterVec
	logins     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		livePeople: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdwatch_live_people",
			Help: "People in the most recent live frame",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_detections_total",
			Help: "Objects detected, by source and label",
		}, []string{"source", "label"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_uploads_total",
			Help: "Processed uploads, by kind and result",
		}, []string{"kind", "result"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_reports_total",
			Help: "Generated PDF reports, by mode",
		}, []string{"mode"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_logins_total",
			Help: "Login attempts, by result",
		}, []string{"result"}),
	}

	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.livePeople,
		m.detections,
		m.uploads,
		m.reports,
		m.logins,
	)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdwatch_frames_read_total",
			Help: "Total frames read from the camera",
		},
		func() float64 { return float64(m.FramesRead.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdwatch_frames_detected_total",
			Help: "Total live frames run through the detector",
		},
		func() float64 { return float64(m.FramesDetected.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdwatch_frames_dropped_total",
			Help: "Total frames a slow viewer did not receive",
		},
		func() float64 { return float64(m.FramesDropped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdwatch_detection_errors_total",
			Help: "Total detector failures",
		},
		func() float64 { return float64(m.DetectionErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "crowdwatch_stream_clients",
			Help: "Connected MJPEG viewers",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))
}

// ObserveLive records the counts of one live frame.
func (m *Metrics) ObserveLive(counts model.Counts) {
	m.livePeople.Set(float64(counts.People()))
	m.observe("live", counts)
}

// ObserveDetections records counts produced by uploads and captures.
func (m *Metrics) ObserveDetections(source string, counts model.Counts) {
	m.observe(source, counts)
}

func (m *Metrics) observe(source string, counts model.Counts) {
	for label, n := range counts {
		m.detections.WithLabelValues(source, label).Add(float64(n))
	}
}

func (m *Metrics) UploadProcessed(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.uploads.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ReportGenerated(mode model.ReportMode) {
	m.reports.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) LoginAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.logins.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
