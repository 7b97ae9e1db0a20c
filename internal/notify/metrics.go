package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the notification delivery Prometheus collectors.
type Metrics struct {
	Enqueued     prometheus.Counter
	Dropped      prometheus.Counter
	Delivered    prometheus.Counter
	Failed       prometheus.Counter
	SendDuration prometheus.Histogram
}

// NewMetrics registers the notification collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Enqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_notify_enqueued_total",
			Help: "Notifications accepted into the delivery queue",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_notify_dropped_total",
			Help: "Notifications dropped because the queue was full",
		}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_notify_delivered_total",
			Help: "Notifications successfully handed to the sender",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_notify_failed_total",
			Help: "Notification delivery failures",
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_notify_send_duration_seconds",
			Help:    "Duration of notification sends in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
		}),
	}
}

func (m *Metrics) IncEnqueued()  { m.Enqueued.Inc() }
func (m *Metrics) IncDropped()   { m.Dropped.Inc() }
func (m *Metrics) IncDelivered() { m.Delivered.Inc() }
func (m *Metrics) IncFailed()    { m.Failed.Inc() }

func (m *Metrics) ObserveSendDuration(seconds float64) {
	m.SendDuration.Observe(seconds)
}
