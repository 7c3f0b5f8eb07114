package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	workerSpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "supervisor",
			Name:      "spawns_total",
			Help:      "Worker child processes launched",
		},
	)

	workerExitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "supervisor",
			Name:      "exits_total",
			Help:      "Worker child processes that exited without being stopped",
		},
	)
)

func init() {
	prometheus.MustRegister(workerSpawnsTotal, workerExitsTotal)
}
