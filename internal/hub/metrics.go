package hub

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomePanic     = "panic"
	outcomeUnhandled = "unhandled"
	outcomePosted    = "posted"
)

var messagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fleetd",
		Subsystem: "hub",
		Name:      "messages_total",
		Help:      "Messages routed by the hub, by kind, message type and outcome",
	},
	[]string{"kind", "message", "outcome"},
)

func init() {
	prometheus.MustRegister(messagesTotal)
}

func countMessage(kind Kind, message, outcome string) {
	messagesTotal.WithLabelValues(string(kind), message, outcome).Inc()
}
