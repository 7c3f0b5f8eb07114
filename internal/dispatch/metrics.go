package dispatch

import (
	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	delegationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchd",
			Subsystem: "dispatch",
			Name:      "delegations_total",
			Help:      "Delegation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// grpcMetrics instruments both gRPC servers; shared so repeated server
	// construction never re-registers collectors.
	grpcMetrics = grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(),
	)
)

func init() {
	prometheus.MustRegister(delegationsTotal, grpcMetrics)
}
