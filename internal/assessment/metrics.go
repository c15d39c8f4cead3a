package assessment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the service's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	recomputations  prometheus.Counter
	recomputeTime   prometheus.Histogram
	answerMutations *prometheus.CounterVec
	overallScore    *prometheus.GaugeVec
	complianceRate  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recomputations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maturity",
			Name:      "recomputations_total",
			Help:      "Full score recomputations.",
		}),
		recomputeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maturity",
			Name:      "recompute_duration_seconds",
			Help:      "Time to load a snapshot and recompute scores.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		answerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maturity",
			Name:      "answer_mutations_total",
			Help:      "Answer set/clear operations.",
		}, []string{"op"}),
		overallScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "maturity",
			Name:      "overall_score",
			Help:      "Latest weighted overall maturity score per user.",
		}, []string{"user"}),
		complianceRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "maturity",
			Name:      "compliance_rate_percent",
			Help:      "Latest share of evaluated frameworks that are compliant, per user.",
		}, []string{"user"}),
	}
	reg.MustRegister(m.recomputations, m.recomputeTime, m.answerMutations, m.overallScore, m.complianceRate)
	return m
}

func (m *Metrics) observeRecompute(userID string, seconds float64, r *Report) {
	if m == nil {
		return
	}
	m.recomputations.Inc()
	m.recomputeTime.Observe(seconds)
	m.overallScore.WithLabelValues(userID).Set(r.Score.Overall)
	m.complianceRate.WithLabelValues(userID).Set(r.Compliance.ComplianceRate)
}

func (m *Metrics) observeMutation(op Intent) {
	if m == nil {
		return
	}
	m.answerMutations.WithLabelValues(string(op)).Inc()
}
