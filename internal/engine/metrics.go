package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use through a nil pointer.
type Metrics struct {
	submitted       *prometheus.CounterVec
	executions      prometheus.Counter
	tradedQuantity  prometheus.Counter
	cancels         *prometheus.CounterVec
	activationWaits prometheus.Counter
	submitLatency   prometheus.Histogram
	books           prometheus.Gauge
}

// NewMetrics registers the engine collectors on reg. A nil reg builds
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "orders_submitted_total",
			Help:      "Limit orders submitted, by side.",
		}, []string{"side"}),
		executions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "executions_total",
			Help:      "Trades executed.",
		}),
		tradedQuantity: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "traded_quantity_total",
			Help:      "Sum of traded quantity.",
		}),
		cancels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "cancels_total",
			Help:      "Cancel requests, by outcome.",
		}, []string{"result"}),
		activationWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "activation_waits_total",
			Help:      "Times a matcher parked on a resting order that was not yet activated.",
		}),
		submitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matcher",
			Name:      "submit_duration_seconds",
			Help:      "Time from side lock acquisition to activation.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		books: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Name:      "order_books",
			Help:      "Instruments with an order book.",
		}),
	}
}

func (m *Metrics) orderSubmitted(side Side, since time.Time) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(string(side)).Inc()
	m.submitLatency.Observe(time.Since(since).Seconds())
}

func (m *Metrics) executed(qty uint32) {
	if m == nil {
		return
	}
	m.executions.Inc()
	m.tradedQuantity.Add(float64(qty))
}

func (m *Metrics) cancelled(found bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "found"
	}
	m.cancels.WithLabelValues(result).Inc()
}

func (m *Metrics) activationWait() {
	if m == nil {
		return
	}
	m.activationWaits.Inc()
}

func (m *Metrics) bookCreated() {
	if m == nil {
		return
	}
	m.books.Inc()
}
