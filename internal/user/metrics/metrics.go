package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcome labels.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginDeactivated        = "deactivated"
)

// Metrics holds the account service Prometheus collectors.
type Metrics struct {
	Registrations prometheus.Counter
	Logins        *prometheus.CounterVec
	Deactivations prometheus.Counter
	Deletions     prometheus.Counter
}

// New registers the account collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_user_registrations_total",
			Help: "Accounts created through self-registration or by an administrator",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_user_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Deactivations: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_user_deactivations_total",
			Help: "Accounts deactivated by an administrator",
		}),
		Deletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_user_deletions_total",
			Help: "Accounts permanently deleted",
		}),
	}
}

// RecordLogin counts one login attempt with its outcome label.
func (m *Metrics) RecordLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}
