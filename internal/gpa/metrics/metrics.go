package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK           = "ok"
	ResultInvalidInput = "invalid_input"
	ResultNotFound     = "not_found"
	ResultStorageError = "storage_error"
)

// Metrics holds the Prometheus metrics for GPA record operations.
type Metrics struct {
	Upserts           *prometheus.CounterVec
	Lookups           *prometheus.CounterVec
	SemestersWritten  prometheus.Counter
	OperationDuration *prometheus.HistogramVec
	AuditEmitFailures prometheus.Counter
}

// New creates and registers the GPA metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Upserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpavault_gpa_upserts_total",
			Help: "GPA upserts by result",
		}, []string{"result"}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpavault_gpa_lookups_total",
			Help: "GPA record lookups by result",
		}, []string{"result"}),
		SemestersWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpavault_gpa_semesters_written_total",
			Help: "Semester entries written by successful upserts",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gpavault_gpa_operation_duration_seconds",
			Help:    "Latency of GPA store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AuditEmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpavault_gpa_audit_emit_failures_total",
			Help: "Audit events that could not be handed to the publisher",
		}),
	}
}

func (m *Metrics) IncrementUpsert(result string) {
	m.Upserts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementLookup(result string) {
	m.Lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddSemestersWritten(n int) {
	m.SemestersWritten.Add(float64(n))
}

func (m *Metrics) ObserveOperation(operation string, elapsed time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementAuditEmitFailure() {
	m.AuditEmitFailures.Inc()
}
