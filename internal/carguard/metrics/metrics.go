package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers access decisions, matching and the audit chain. All
// methods are no-ops on a nil receiver.
type Metrics struct {
	// Decision outcomes by method (FACE|PIN) and outcome
	DecisionOutcome *prometheus.CounterVec

	// Full decision latency by method
	DecideLatency *prometheus.HistogramVec

	// Match scores by matcher path (PRIMARY|FALLBACK)
	MatchScore *prometheus.HistogramVec

	// Extraction calls by result: detected, no_face, unavailable
	Extraction *prometheus.CounterVec

	// 1 while the last audit verification succeeded, 0 after a break
	AuditChainIntact prometheus.Gauge
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carguard_access_decisions_total",
			Help: "Access decisions by method and outcome",
		}, []string{"method", "outcome"}),

		DecideLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carguard_access_decide_duration_seconds",
			Help:    "Duration of a full access decision including extraction and persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),

		MatchScore: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carguard_match_score",
			Help:    "Best similarity score per matched probe",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"path"}),

		Extraction: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carguard_engine_extractions_total",
			Help: "Descriptor extraction attempts by result",
		}, []string{"result"}),

		AuditChainIntact: f.NewGauge(prometheus.GaugeOpts{
			Name: "carguard_audit_chain_intact",
			Help: "Whether the last audit chain verification passed",
		}),
	}
}

func (m *Metrics) IncrementOutcome(method, outcome string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(method, outcome).Inc()
	}
}

func (m *Metrics) ObserveDecideLatency(method string, d time.Duration) {
	if m != nil {
		m.DecideLatency.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveMatchScore(path string, score float64) {
	if m != nil {
		m.MatchScore.WithLabelValues(path).Observe(score)
	}
}

func (m *Metrics) IncrementExtraction(result string) {
	if m != nil {
		m.Extraction.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetAuditChainIntact(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.AuditChainIntact.Set(1)
	} else {
		m.AuditChainIntact.Set(0)
	}
}
