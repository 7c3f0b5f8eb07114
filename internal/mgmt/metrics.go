package mgmt

import "github.com/prometheus/client_golang/prometheus"

var heartbeatsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dispatchd",
		Subsystem: "mgmt",
		Name:      "heartbeats_total",
		Help:      "Heartbeat calls received from workers",
	},
)

func init() {
	prometheus.MustRegister(heartbeatsTotal)
}
