package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports the per-outcome counters to Prometheus. A nil *Metrics is a
// valid no-op receiver so batch-only invocations skip registration entirely.
type Metrics struct {
	considered  prometheus.Counter
	gatedOut    prometheus.Counter
	cacheHits   prometheus.Counter
	oracleCalls prometheus.Counter
	budgetSkips prometheus.Counter
	dropped     prometheus.Counter
	oracleErrs  prometheus.Counter
	rejected    prometheus.Counter
	duplicates  prometheus.Counter
	accepted    prometheus.Counter
}

// NewMetrics registers the pipeline counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "picnic",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		considered:  counter("emails_considered_total", "Emails submitted to the pipeline."),
		gatedOut:    counter("emails_gated_out_total", "Emails rejected by the pre-oracle heuristic gate."),
		cacheHits:   counter("oracle_cache_hits_total", "Extractions served from the response cache."),
		oracleCalls: counter("oracle_calls_total", "Budget-consuming oracle calls."),
		budgetSkips: counter("oracle_budget_skipped_total", "Emails skipped because the call budget was spent."),
		dropped:     counter("oracle_dropped_total", "Emails the oracle classified as non-events."),
		oracleErrs:  counter("oracle_errors_total", "Oracle transport failures and unparsable responses."),
		rejected:    counter("events_rejected_total", "Oracle drafts rejected by validation."),
		duplicates:  counter("events_duplicate_total", "Events suppressed as duplicates of archived ones."),
		accepted:    counter("events_accepted_total", "Events accepted and persisted."),
	}
}

// Record adds a finished report's counts to the counters.
func (m *Metrics) Record(r *Report) {
	if m == nil {
		return
	}
	m.considered.Add(float64(r.Considered))
	m.gatedOut.Add(float64(r.GatedOut))
	m.cacheHits.Add(float64(r.CacheHits))
	m.oracleCalls.Add(float64(r.OracleCalls))
	m.budgetSkips.Add(float64(r.BudgetSkipped))
	m.dropped.Add(float64(r.OracleDropped))
	m.oracleErrs.Add(float64(r.OracleErrors))
	m.rejected.Add(float64(r.ValidationRejected))
	m.duplicates.Add(float64(r.DuplicateSuppressed))
	m.accepted.Add(float64(r.Accepted))
}
