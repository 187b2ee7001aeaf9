package rbac

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the authorization core.
type Metrics struct {
	Decisions            *prometheus.CounterVec
	AuditWriteFailures   prometheus.Counter
	FilteredRows         *prometheus.CounterVec
	MalformedResults     *prometheus.CounterVec
	UnidentifiedSpeakers prometheus.Counter
	Queries              *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_decisions_total",
				Help: "Authorization decisions by resource type and outcome",
			},
			[]string{"resource_type", "outcome"},
		),
		AuditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_audit_write_failures_total",
				Help: "Access log inserts that failed; the decision was still returned",
			},
		),
		FilteredRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_filtered_rows_total",
				Help: "Rows removed by the result filter because they were outside the actor's scope",
			},
			[]string{"resource_type"},
		),
		MalformedResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_malformed_results_total",
				Help: "Upstream result sets rejected by the result filter",
			},
			[]string{"resource_type"},
		),
		UnidentifiedSpeakers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rbac_unidentified_speakers_total",
				Help: "Transcript speaker labels that could not be resolved to exactly one employee",
			},
		),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_queries_total",
				Help: "Natural-language queries by status",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Decisions,
			m.AuditWriteFailures,
			m.FilteredRows,
			m.MalformedResults,
			m.UnidentifiedSpeakers,
			m.Queries,
		)
	}
	return m
}

func outcomeLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
