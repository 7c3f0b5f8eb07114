package workerclient

import "github.com/prometheus/client_golang/prometheus"

var (
	forwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "worker",
			Name:      "forward_total",
			Help:      "Inference requests forwarded to workers",
		},
		[]string{"socket"},
	)

	forwardFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "worker",
			Name:      "forward_failures_total",
			Help:      "Forwarding failures by stage",
		},
		[]string{"socket", "stage"},
	)
)

func init() {
	prometheus.MustRegister(forwardTotal, forwardFailuresTotal)
}
