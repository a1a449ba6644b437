package metrics

import "github.com/prometheus/client_golang/prometheus"

// PushMetrics counts web-push dispatch outcomes.
type PushMetrics struct {
	sent    *prometheus.CounterVec
	failed  *prometheus.CounterVec
	expired prometheus.Counter
}

// NewPushMetrics registers push delivery metrics on the provided registerer.
func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	if reg == nil {
		return &PushMetrics{}
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_sent_total",
		Help: "Push notifications accepted by the gateway.",
	}, []string{"path"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_failed_total",
		Help: "Push notifications rejected or errored.",
	}, []string{"path"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_subscriptions_expired_total",
		Help: "Stored subscriptions the gateway reported gone.",
	})
	reg.MustRegister(sent, failed, expired)
	return &PushMetrics{sent: sent, failed: failed, expired: expired}
}

// IncSent records a successful dispatch on the named path (agent/direct).
func (p *PushMetrics) IncSent(path string) {
	if p == nil || p.sent == nil {
		return
	}
	p.sent.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncFailed records a failed dispatch on the named path.
func (p *PushMetrics) IncFailed(path string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncExpired records a subscription pruned after a gateway 410.
func (p *PushMetrics) IncExpired() {
	if p == nil || p.expired == nil {
		return
	}
	p.expired.Inc()
}
