package reachability

// reporter is the reachability reporter (C7): the thin sink that turns a
// classified verdict into a delivered transport status update plus a
// metric, kept separate from the Alice driver so test_complete's
// classification logic doesn't need to know how verdicts are delivered.
type reporter struct {
	transport Transport
	metrics   *Metrics
}

func newReporter(t Transport, m *Metrics) *reporter {
	return &reporter{transport: t, metrics: m}
}

func (r *reporter) deliver(v Verdict) {
	r.transport.SetReachabilityStatus(v)
	r.metrics.TestsCompleted.WithLabelValues(v.String()).Inc()
}
