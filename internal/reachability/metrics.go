package reachability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the teacher's per-concern promauto metric layout
// (internal/liveness/metrics.go): one struct of already-registered
// collectors, built once and threaded through by reference.
type Metrics struct {
	TestsStarted         prometheus.Counter
	TestsCompleted       *prometheus.CounterVec // by verdict
	TestsRejected        *prometheus.CounterVec // by reason
	ActiveTableFull      prometheus.Counter
	ThrottleDrops        prometheus.Counter
	BadEnvelopeDrops     *prometheus.CounterVec // by role
	TestBadIP            prometheus.Counter
	FourthPartyDrops     prometheus.Counter
	KnownCharlieShortcut prometheus.Counter
	PacketsSent          *prometheus.CounterVec // by role
	ActiveTestTableLen   prometheus.GaugeFunc
	SchedulerQueueLen    prometheus.GaugeFunc
}

// NewMetrics registers the reachability metrics on reg. If reg is nil, the
// default Prometheus registerer is used, matching the teacher's
// promauto.With(reg) pattern where reg may be supplied by the caller for
// test isolation.
func NewMetrics(reg prometheus.Registerer, tableLen, queueLen func() float64) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TestsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "alice",
			Name:      "tests_started_total",
			Help:      "Reachability tests initiated as Alice.",
		}),
		TestsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "alice",
			Name:      "tests_completed_total",
			Help:      "Reachability tests finalised as Alice, by verdict.",
		}, []string{"verdict"}),
		TestsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "alice",
			Name:      "tests_rejected_total",
			Help:      "RunTest calls rejected before a test began, by reason.",
		}, []string{"reason"}),
		ActiveTableFull: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "responder",
			Name:      "active_table_full_total",
			Help:      "Packets dropped because the active-test table was at capacity.",
		}),
		ThrottleDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "responder",
			Name:      "throttle_drops_total",
			Help:      "Packets dropped by the per-source-IP throttle.",
		}),
		BadEnvelopeDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "responder",
			Name:      "bad_envelope_drops_total",
			Help:      "Packets silently dropped for a malformed reflected endpoint, by role.",
		}, []string{"role"}),
		TestBadIP: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "dispatch",
			Name:      "test_bad_ip_total",
			Help:      "Packets dropped by centralised receive_test validation (§6.4).",
		}),
		FourthPartyDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "dispatch",
			Name:      "fourth_party_drops_total",
			Help:      "Packets dropped because the source matched neither stored endpoint of a Bob record.",
		}),
		KnownCharlieShortcut: f.NewCounter(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "alice",
			Name:      "known_charlie_shortcut_total",
			Help:      "Tests finalised UNKNOWN early because the replying peer was a known session.",
		}),
		PacketsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prt",
			Subsystem: "wire",
			Name:      "packets_sent_total",
			Help:      "Reachability protocol packets sent, by local role.",
		}, []string{"role"}),
		ActiveTestTableLen: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "prt",
			Subsystem: "responder",
			Name:      "active_table_len",
			Help:      "Current number of in-flight Bob/Charlie test records.",
		}, tableLen),
		SchedulerQueueLen: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "prt",
			Subsystem: "scheduler",
			Name:      "queue_len",
			Help:      "Current number of pending scheduler events.",
		}, queueLen),
	}
}
