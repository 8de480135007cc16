package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's prometheus counters.  A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	scans       *prometheus.CounterVec
	workerRuns  *prometheus.CounterVec
	scoreWrites *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labaccess",
			Name:      "scans_total",
			Help:      "Processed card scans by outcome.",
		}, []string{"outcome"}),
		workerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labaccess",
			Name:      "worker_runs_total",
			Help:      "Reconciliation worker passes by worker and result.",
		}, []string{"worker", "result"}),
		scoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labaccess",
			Name:      "score_entries_total",
			Help:      "Ledger rows appended by category.",
		}, []string{"category"}),
	}
	reg.MustRegister(m.scans, m.workerRuns, m.scoreWrites)
	return m
}

// Scans exposes the scan counter for tests.
func (m *Metrics) Scans() *prometheus.CounterVec { return m.scans }

// WorkerRuns exposes the worker counter for tests.
func (m *Metrics) WorkerRuns() *prometheus.CounterVec { return m.workerRuns }

// ScoreEntries exposes the ledger counter for tests.
func (m *Metrics) ScoreEntries() *prometheus.CounterVec { return m.scoreWrites }

func (m *Metrics) scan(outcome string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) workerRun(worker string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.workerRuns.WithLabelValues(worker, result).Inc()
}

func (m *Metrics) scoreEntry(category string) {
	if m == nil {
		return
	}
	m.scoreWrites.WithLabelValues(category).Inc()
}
