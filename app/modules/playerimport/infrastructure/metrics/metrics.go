package importmetrics

import (
	"context"
	"time"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline operations and outcomes.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordRowsStaged(ctx context.Context, counts importdomain.RowCounts)
	RecordExecutionOutcome(ctx context.Context, outcome importdomain.ExecutionOutcome)
	RecordBatchFailed(ctx context.Context, code importdomain.ErrorCode)
}

// PrometheusMetrics implements Metrics on a prometheus registerer.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rowsStaged *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	failed     *prometheus.CounterVec
}

// NewPrometheusMetrics registers the pipeline collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_import_operations_total",
			Help: "Player import operations by service, operation and result.",
		}, []string{"service", "operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "player_import_operation_duration_seconds",
			Help:    "Duration of player import operations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"service", "operation"}),
		rowsStaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_import_rows_staged_total",
			Help: "Staged rows by validity.",
		}, []string{"validity"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_import_execution_outcomes_total",
			Help: "Execution results by outcome.",
		}, []string{"outcome"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_import_batches_failed_total",
			Help: "Batches moved to failed, by error code.",
		}, []string{"code"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.rowsStaged, m.outcomes, m.failed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "attempt").Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "success").Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operations.WithLabelValues(service, operation, "failure").Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.duration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordRowsStaged(_ context.Context, counts importdomain.RowCounts) {
	m.rowsStaged.WithLabelValues(string(importdomain.ValidityValid)).Add(float64(counts.Valid))
	m.rowsStaged.WithLabelValues(string(importdomain.ValidityInvalid)).Add(float64(counts.Invalid))
	m.rowsStaged.WithLabelValues(string(importdomain.ValidityDuplicate)).Add(float64(counts.Duplicate))
}

func (m *PrometheusMetrics) RecordExecutionOutcome(_ context.Context, outcome importdomain.ExecutionOutcome) {
	m.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (m *PrometheusMetrics) RecordBatchFailed(_ context.Context, code importdomain.ErrorCode) {
	m.failed.WithLabelValues(string(code)).Inc()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoopMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoopMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoopMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoopMetrics) RecordRowsStaged(context.Context, importdomain.RowCounts)               {}
func (NoopMetrics) RecordExecutionOutcome(context.Context, importdomain.ExecutionOutcome)  {}
func (NoopMetrics) RecordBatchFailed(context.Context, importdomain.ErrorCode)              {}
