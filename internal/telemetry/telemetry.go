// Package telemetry owns the Prometheus collectors and the OpenTelemetry
// tracer shared by the engine and the worker.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/SoftFever/OrcaSlicer-sub043"

var (
	// ApplyTotal counts reconciliations by resulting severity.
	ApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printsync_apply_total",
		Help: "Reconciliations by resulting severity",
	}, []string{"severity"})

	// ApplyDuration observes how long a reconciliation held the print lock.
	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "printsync_apply_duration_seconds",
		Help:    "Duration of a reconciliation",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	// InvalidationTotal counts step transitions back to invalid.
	InvalidationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printsync_invalidation_total",
		Help: "Steps invalidated by reconciliation",
	}, []string{"scope", "step"})

	// StepRunTotal counts step executions by outcome.
	StepRunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printsync_step_run_total",
		Help: "Step executions by outcome",
	}, []string{"step", "outcome"})

	// StepDuration observes step body run time.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "printsync_step_duration_seconds",
		Help:    "Step body duration",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"step"})

	// Regions tracks the number of interned regions.
	Regions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "printsync_regions",
		Help: "Interned regions currently alive",
	})
)

// Tracer returns the module tracer. Without an installed SDK it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
