package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	auditedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "consumer",
		Name:      "roster_events_audited_total",
		Help:      "Roster events written to the audit log, by activity and event type.",
	}, []string{"activity", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Roster events given up on after every handler attempt failed.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Messages skipped because they were not valid roster events.",
	}, []string{"topic"})

	lastAuditedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "enrollment_service",
		Subsystem: "consumer",
		Name:      "last_audited_event_timestamp_seconds",
		Help:      "occurred_at of the newest roster event audited per activity.",
	}, []string{"activity"})

	retryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enrollment_service",
		Subsystem: "consumer",
		Name:      "handler_retries_total",
		Help:      "Handler attempts repeated after a failure, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(auditedCounter, handlerErrorCounter, decodeErrorCounter, lastAuditedGauge, retryCounter)
}

func recordAudited(msg Message) {
	event := msg.Event
	auditedCounter.WithLabelValues(event.Activity, event.EventType).Inc()
	if !event.OccurredAt.IsZero() {
		lastAuditedGauge.WithLabelValues(event.Activity).Set(float64(event.OccurredAt.Unix()))
	}
}

func recordRetry(msg Message) {
	retryCounter.WithLabelValues(msg.Event.EventType).Inc()
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.Event.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
