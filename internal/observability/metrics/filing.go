package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docs-manager/internal/core/domain"
)

// FilingMetrics implements ports.FilingObserver.
type FilingMetrics struct {
	registry *prometheus.Registry
	service  string

	capturesTotal  *prometheus.CounterVec
	filingsTotal   *prometheus.CounterVec
	filingDuration *prometheus.HistogramVec
	ocrAvailable   prometheus.Gauge
}

func NewFilingMetrics(service string) *FilingMetrics {
	registry := prometheus.NewRegistry()

	capturesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docs",
			Subsystem: "capture",
			Name:      "events_total",
			Help:      "Capture events by source and outcome.",
		},
		[]string{"service", "source", "outcome"},
	)
	filingsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docs",
			Subsystem: "filing",
			Name:      "documents_total",
			Help:      "Filed documents by type and status.",
		},
		[]string{"service", "document_type", "status"},
	)
	filingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docs",
			Subsystem: "filing",
			Name:      "duration_seconds",
			Help:      "Time spent moving a capture into the documents tree.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"service", "status"},
	)
	ocrAvailable := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docs",
			Subsystem: "ocr",
			Name:      "available",
			Help:      "1 when a text recognizer is configured.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(capturesTotal, filingsTotal, filingDuration, ocrAvailable)

	return &FilingMetrics{
		registry:       registry,
		service:        service,
		capturesTotal:  capturesTotal,
		filingsTotal:   filingsTotal,
		filingDuration: filingDuration,
		ocrAvailable:   ocrAvailable,
	}
}

func (m *FilingMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *FilingMetrics) ObserveCapture(source domain.CaptureSource, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.capturesTotal.WithLabelValues(m.service, string(source), outcome).Inc()
}

func (m *FilingMetrics) ObserveFiling(docType domain.DocumentType, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if docType == "" {
		docType = domain.TypeOther
	}
	m.filingsTotal.WithLabelValues(m.service, string(docType), status).Inc()
	m.filingDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *FilingMetrics) SetOCRAvailable(available bool) {
	if available {
		m.ocrAvailable.Set(1)
		return
	}
	m.ocrAvailable.Set(0)
}
