package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Guardrails: решения по категориям (approved/denied)
	GuardrailDecisions *prometheus.CounterVec

	// Dispatch: исходы задач в батче (success, failed, agent_unavailable)
	DispatchTasks *prometheus.CounterVec

	// Dispatch: длительность одного прохода ProcessQueue
	DispatchBatchDuration prometheus.Histogram

	// Audit: потерянные записи (buffer_full, stopped, error_channel_full)
	AuditDropped *prometheus.CounterVec

	// Audit: неудачные записи батчей в хранилище
	AuditWriteFailures *prometheus.CounterVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge

	// Saturation: состояние Circuit Breaker исполнителя (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		GuardrailDecisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governor_guardrail_decisions_total",
			Help: "Guardrail decisions by category and outcome.",
		}, []string{"category", "decision"}),

		DispatchTasks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governor_dispatch_tasks_total",
			Help: "Dispatched tasks by outcome.",
		}, []string{"outcome"}),

		DispatchBatchDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "governor_dispatch_batch_duration_seconds",
			Help:    "Duration of a single queue processing batch.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		AuditDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governor_audit_dropped_total",
			Help: "Audit entries dropped before reaching storage.",
		}, []string{"reason"}),

		AuditWriteFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "governor_audit_write_failures_total",
			Help: "Failed audit batch writes by kind.",
		}, []string{"kind"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "governor_audit_buffer_utilization",
			Help: "Current number of entries in audit buffer.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "governor_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}
}
