package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the station's Prometheus counters.
type Metrics struct {
	Scans       *prometheus.CounterVec
	Submissions *prometheus.CounterVec
}

// Scan result labels.
const (
	ScanAccepted = "accepted"
	ScanDropped  = "dropped"
	ScanIgnored  = "ignored"
)

// Submission outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeRejected       = "rejected"
	OutcomeInvalidPayload = "invalid_payload"
	OutcomeConfigMissing  = "config_missing"
)

// New registers the station counters with the given registerer; nil uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanstation_scans_total",
			Help: "Decode events by debounce result.",
		}, []string{"result"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanstation_submissions_total",
			Help: "Accepted scans by route and outcome.",
		}, []string{"route", "outcome"}),
	}
}
