package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons used as the reason label.
const (
	ReasonNotFound        = "not_found"
	ReasonAlreadySignedUp = "already_signed_up"
	ReasonNotSignedUp     = "not_signed_up"
	ReasonFull            = "full"
)

var (
	signupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "roster",
		Name:      "signups_total",
		Help:      "Number of successful signups per activity.",
	}, []string{"activity"})

	unregisterCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "roster",
		Name:      "unregistrations_total",
		Help:      "Number of successful unregistrations per activity.",
	}, []string{"activity"})

	// No activity label: not-found names come straight from the request.
	rejectionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "roster",
		Name:      "rejections_total",
		Help:      "Number of rejected roster mutations by operation and reason.",
	}, []string{"operation", "reason"})

	rosterSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "enrollment_service",
		Subsystem: "roster",
		Name:      "participants",
		Help:      "Current number of participants per activity.",
	}, []string{"activity"})
)

func init() {
	prometheus.MustRegister(signupCounter, unregisterCounter, rejectionCounter, rosterSizeGauge)
}

// RecordSignUp counts a successful signup and updates the roster gauge.
func RecordSignUp(activity string, rosterSize int) {
	signupCounter.WithLabelValues(activity).Inc()
	rosterSizeGauge.WithLabelValues(activity).Set(float64(rosterSize))
}

// RecordUnregister counts a successful unregister and updates the roster gauge.
func RecordUnregister(activity string, rosterSize int) {
	unregisterCounter.WithLabelValues(activity).Inc()
	rosterSizeGauge.WithLabelValues(activity).Set(float64(rosterSize))
}

// RecordRejection counts a failed mutation.
func RecordRejection(operation, reason string) {
	rejectionCounter.WithLabelValues(operation, reason).Inc()
}

// SetRosterSize seeds the roster gauge, used at startup.
func SetRosterSize(activity string, rosterSize int) {
	rosterSizeGauge.WithLabelValues(activity).Set(float64(rosterSize))
}

// SignupCounter returns the signup counter child for activity.
func SignupCounter(activity string) prometheus.Counter {
	return signupCounter.WithLabelValues(activity)
}

// RejectionCounter returns the rejection counter child for operation and reason.
func RejectionCounter(operation, reason string) prometheus.Counter {
	return rejectionCounter.WithLabelValues(operation, reason)
}

// RosterSizeGauge returns the roster gauge child for activity.
func RosterSizeGauge(activity string) prometheus.Gauge {
	return rosterSizeGauge.WithLabelValues(activity)
}
