package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// PipelineMetrics counts document outcomes, audit failures and resilience events.
type PipelineMetrics struct {
	documentsTotal  *prometheus.CounterVec
	itemsTotal      *prometheus.CounterVec
	cnaeTotal       *prometheus.CounterVec
	batchFilesTotal *prometheus.CounterVec
	auditFailures   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Analyzed documents by kind, class and review level.",
		}, []string{"kind", "doc_class", "review_level"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Normalized items by kind and decision.",
		}, []string{"kind", "decision"}),
		cnaeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cnae_matches_total",
			Help:      "CNAE versus description checks by status.",
		}, []string{"status"}),
		batchFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_files_total",
			Help:      "Archive members by kind and outcome.",
		}, []string{"kind", "outcome"}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "audit_failures_total",
			Help:      "Audit events a sink failed to store.",
		}, []string{"sink"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried calls by operation.",
		}, []string{"operation"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
		}, []string{"operation"}),
	}
	registerer.MustRegister(
		m.documentsTotal,
		m.itemsTotal,
		m.cnaeTotal,
		m.batchFilesTotal,
		m.auditFailures,
		m.retriesTotal,
		m.breakerState,
	)
	return m
}

func (m *PipelineMetrics) ObserveDocument(kind, docClass, reviewLevel string) {
	m.documentsTotal.WithLabelValues(kind, docClass, reviewLevel).Inc()
}

func (m *PipelineMetrics) ObserveItemDecision(kind, decision string) {
	m.itemsTotal.WithLabelValues(kind, decision).Inc()
}

func (m *PipelineMetrics) ObserveCNAEMatch(status string) {
	if status == "" {
		status = "unknown"
	}
	m.cnaeTotal.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) ObserveBatchFile(kind, outcome string) {
	m.batchFilesTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *PipelineMetrics) ObserveAuditFailure(sink string) {
	m.auditFailures.WithLabelValues(sink).Inc()
}

func (m *PipelineMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *PipelineMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(state))
}
