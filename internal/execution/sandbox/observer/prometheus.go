package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports execution metrics.
type PrometheusRecorder struct {
	executions   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	memory       *prometheus.HistogramVec
	compilations *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	inFlight     prometheus.Gauge
}

// NewPrometheusRecorder registers the collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeexec_executions_total",
				Help: "Total number of executions by outcome",
			},
			[]string{"language", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codeexec_execution_duration_ms",
				Help:    "Execution duration in milliseconds",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
			[]string{"language", "phase"},
		),
		memory: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codeexec_peak_memory_kb",
				Help:    "Peak memory usage per execution in KB",
				Buckets: []float64{1024, 4096, 16384, 65536, 131072, 262144, 524288},
			},
			[]string{"language"},
		),
		compilations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeexec_compilations_total",
				Help: "Total number of compilations",
			},
			[]string{"language", "ok"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeexec_rejected_requests_total",
				Help: "Requests rejected before execution",
			},
			[]string{"reason"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "codeexec_executions_in_flight",
				Help: "Executions currently running",
			},
		),
	}
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	r.compilations.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
	r.duration.WithLabelValues(languageID, "compile").Observe(float64(timeMs))
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, outcome string, timeMs float64, memoryKB int64) {
	r.executions.WithLabelValues(languageID, outcome).Inc()
	r.duration.WithLabelValues(languageID, "run").Observe(timeMs)
	if memoryKB > 0 {
		r.memory.WithLabelValues(languageID).Observe(float64(memoryKB))
	}
}

// ObserveRejected counts a request turned away by admission control.
func (r *PrometheusRecorder) ObserveRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its release.
func (r *PrometheusRecorder) TrackInFlight() func() {
	r.inFlight.Inc()
	return r.inFlight.Dec
}
