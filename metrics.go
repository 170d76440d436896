package jwtauth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultAccepted           = "accepted"
	resultRejected           = "rejected"
	resultVerificationFailed = "verification_failed"
)

// Metrics counts authentication decisions made by Provider.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them in reg (if not nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jwtauth",
			Name:      "decisions_total",
			Help:      "Total number of token authentication decisions by result and rejection reason.",
		}, []string{"result", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions)
	}
	return m
}

func (m *Metrics) observe(result string, reason Reason) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(result, reason.String()).Inc()
}
