package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the order service Prometheus collectors.
type Metrics struct {
	Created       prometheus.Counter
	StatusChanges *prometheus.CounterVec
	Cancellations prometheus.Counter
	Deletions     prometheus.Counter
}

// New registers the order collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_orders_created_total",
			Help: "Orders placed",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_order_status_changes_total",
			Help: "Order status transitions by destination status",
		}, []string{"to"}),
		Cancellations: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_order_cancellations_total",
			Help: "Orders cancelled by their owner",
		}),
		Deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_order_deletions_total",
			Help: "Orders permanently deleted",
		}),
	}
}

// RecordStatusChange counts one transition into the given status.
func (m *Metrics) RecordStatusChange(to string) {
	m.StatusChanges.WithLabelValues(to).Inc()
}
