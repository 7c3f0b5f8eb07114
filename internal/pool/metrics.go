package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	poolExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "pool",
			Name:      "exhausted_total",
			Help:      "Acquires rejected because the per-endpoint cap was reached",
		},
		[]string{"socket"},
	)

	poolConnectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "pool",
			Name:      "connect_failures_total",
			Help:      "Failed dials to worker sockets",
		},
		[]string{"socket"},
	)
)

func init() {
	prometheus.MustRegister(poolExhaustedTotal, poolConnectFailuresTotal)
}
