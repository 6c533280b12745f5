package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the teacher's liveness/metrics.go layout for the
// read-loop itself, one layer below the reachability package's own
// protocol-level metrics.
type Metrics struct {
	ReadSocketErrors *prometheus.CounterVec
	PacketsRxInvalid *prometheus.CounterVec
	PacketsRx        prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReadSocketErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "udp",
			Name:      "read_socket_errors_total",
			Help:      "Non-timeout errors from the UDP read loop.",
		}, []string{"reason"}),
		PacketsRxInvalid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "udp",
			Name:      "packets_rx_invalid_total",
			Help:      "Packets dropped before reaching the coordinator, by reason.",
		}, []string{"reason"}),
		PacketsRx: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "udp",
			Name:      "packets_rx_total",
			Help:      "Packets successfully decoded and handed to the coordinator.",
		}),
	}
}
