package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExtractionMetrics covers the worker pipeline: runs by outcome, run
// duration, paid provider calls skipped by the text pre-scan, and token
// consumption by model and phase.
type ExtractionMetrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runsInFlight   prometheus.Gauge
	prescanSkips   prometheus.Counter
	tokensConsumed *prometheus.CounterVec
}

func NewExtractionMetrics(service string) *ExtractionMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "belegwerk",
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Total extraction runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "belegwerk",
			Subsystem: "extraction",
			Name:      "run_duration_seconds",
			Help:      "Extraction run duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "belegwerk",
			Subsystem: "extraction",
			Name:      "runs_in_flight",
			Help:      "Number of extraction runs currently in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	prescanSkips := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "belegwerk",
			Subsystem: "extraction",
			Name:      "prescan_skips_total",
			Help:      "Classification calls avoided by the text pre-scan.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	tokensConsumed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "belegwerk",
			Subsystem: "extraction",
			Name:      "tokens_consumed_total",
			Help:      "AI tokens consumed by model, phase and direction.",
		},
		[]string{"model", "phase", "direction"},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, prescanSkips, tokensConsumed)

	return &ExtractionMetrics{
		registry:       registry,
		runsTotal:      runsTotal,
		runDuration:    runDuration,
		runsInFlight:   runsInFlight,
		prescanSkips:   prescanSkips,
		tokensConsumed: tokensConsumed,
	}
}

func (m *ExtractionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ExtractionMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *ExtractionMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runsInFlight.Dec()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runsTotal.WithLabelValues(service, outcome).Inc()
	m.runDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *ExtractionMetrics) PrescanSkip() {
	m.prescanSkips.Inc()
}

// TokensConsumed implements the pipeline observer port.
func (m *ExtractionMetrics) TokensConsumed(model, phase string, input, output int) {
	if input > 0 {
		m.tokensConsumed.WithLabelValues(model, phase, "input").Add(float64(input))
	}
	if output > 0 {
		m.tokensConsumed.WithLabelValues(model, phase, "output").Add(float64(output))
	}
}
