package fleet

import "github.com/prometheus/client_golang/prometheus"

var (
	nodesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetd",
			Subsystem: "fleet",
			Name:      "nodes",
			Help:      "Known nodes by state",
		},
		[]string{"state"},
	)
	queryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fleetd",
			Subsystem: "fleet",
			Name:      "query_duration_seconds",
			Help:      "Duration of fleet queries",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(nodesGauge, queryDuration)
}
