package reachability

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"
)

// RunTest begins a reachability test with the local node as Alice, using bob
// as the relay (§4.1 run_test). It is rejected — logged, counted, and
// otherwise ignored — if a test is already outstanding, or if bob shares the
// first two address bytes of Alice's own external IP (testing reachability
// through oneself, or a peer that close, is meaningless). The returned error is advisory only: callers that don't care
// why a test didn't start may discard it.
func (c *Coordinator) RunTest(bob Endpoint, bobCipherKey, bobMACKey []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.currentComplete {
		c.metrics.TestsRejected.WithLabelValues("already_running").Inc()
		c.log.Warn("reachability.alice: refusing to start test, one already in flight", "existing_nonce", c.current.Nonce)
		return errAlreadyRunning
	}
	if ext := c.transport.ExternalIP(); sameSlash16(bob.IP, ext) {
		c.metrics.TestsRejected.WithLabelValues("self_peer").Inc()
		c.log.Warn("reachability.alice: refusing to test through a peer sharing our external IP", "bob", bob)
		return errSelfPeer
	}

	nonce, err := randomNonce()
	if err != nil {
		return err
	}

	now := c.clk.Now()
	rec := &TestRecord{
		Nonce:          nonce,
		Role:           RoleAlice,
		BeginTime:      now,
		LastSendTime:   now,
		BobIP:          bob.IP,
		BobPort:        bob.Port,
		BobCipherKey:   bobCipherKey,
		BobMACKey:      bobMACKey,
		PacketsRelayed: 1,
	}
	c.current = rec
	c.currentComplete = false
	c.ring.Push(nonce)

	pkt := c.pb.AliceToBob(nonce, c.transport.IntroKey(), bobCipherKey, bobMACKey)
	c.sendAs(RoleAlice, bob, pkt)
	c.metrics.TestsStarted.Inc()
	c.log.Info("reachability.alice: test started", fmtTestLog(rec)...)

	c.sched.ScheduleContinueTest(nonce, ResendTimeout)
	return nil
}

func randomNonce() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// onContinueTest is the scheduler's ContinueTest tick for the current Alice
// test (§4.1 continue_test). Stale ticks — for a nonce that is no longer the
// current test — are silently ignored, since an event closes over a nonce
// rather than a record pointer (§9 design note).
func (c *Coordinator) onContinueTest(nonce uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.current
	if rec == nil || rec.Nonce != nonce || c.currentComplete {
		return
	}

	now := c.clk.Now()
	if rec.Expired(now) {
		c.finalizeLocked(true)
		return
	}

	if now.Sub(rec.LastSendTime) < ResendTimeout {
		// Woken early (clock skew, spurious wakeup); re-arm at the same
		// cadence without counting another retransmission.
		c.sched.ScheduleContinueTest(nonce, ResendTimeout+time.Duration(rec.PacketsRelayed)*time.Second)
		return
	}

	rec.PacketsRelayed++
	if rec.PacketsRelayed > rec.RelayCap() {
		c.log.Debug("reachability.alice: giving up, relay cap reached", fmtTestLog(rec)...)
		c.finalizeLocked(false)
		return
	}

	c.retransmitLocked(rec)
	rec.LastSendTime = now
	c.sched.ScheduleContinueTest(nonce, ResendTimeout+time.Duration(rec.PacketsRelayed)*time.Second)
}

// retransmitLocked resends to whichever peer the test is currently waiting
// on: Bob until he's replied once, Bob again to prod a stalled Charlie leg,
// then Charlie directly once we know who she is. c.mu is held.
func (c *Coordinator) retransmitLocked(rec *TestRecord) {
	switch {
	case rec.ReceiveBobTime.IsZero():
		pkt := c.pb.AliceToBob(rec.Nonce, c.transport.IntroKey(), rec.BobCipherKey, rec.BobMACKey)
		c.sendAs(RoleAlice, rec.BobEndpoint(), pkt)
	case rec.ReceiveCharlieTime.IsZero():
		pkt := c.pb.AliceToBob(rec.Nonce, c.transport.IntroKey(), rec.BobCipherKey, rec.BobMACKey)
		c.sendAs(RoleAlice, rec.BobEndpoint(), pkt)
	default:
		pkt := c.pb.AliceToCharlie(rec.Nonce, c.transport.IntroKey(), rec.CharlieIntroKey)
		c.sendAs(RoleAlice, rec.CharlieEndpoint(), pkt)
	}
}

// receiveTestReply handles a packet addressed to Alice's outstanding test
// (§4.1 receive_test_reply). from is treated as Bob only if it matches the
// endpoint Alice originally sent to; any other source is treated as Charlie,
// including the known-Charlie short-circuit.
func (c *Coordinator) receiveTestReply(from Endpoint, env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.current
	if rec == nil || rec.Nonce != env.Nonce || c.currentComplete {
		return
	}
	now := c.clk.Now()

	if from.Equal(rec.BobEndpoint()) {
		if len(env.IP) != net.IPv4len && len(env.IP) != net.IPv6len {
			c.metrics.BadEnvelopeDrops.WithLabelValues("bob").Inc()
			c.log.Debug("reachability.alice: dropping malformed reflected IP from bob", fmtTestLog(rec)...)
			return
		}
		if env.Port == 0 {
			c.metrics.BadEnvelopeDrops.WithLabelValues("bob").Inc()
			c.log.Debug("reachability.alice: dropping malformed reflected port from bob", fmtTestLog(rec)...)
			return
		}
		rec.ReceiveBobTime = now
		rec.AliceIP = env.IP
		rec.AlicePort = env.Port
		if rec.AlicePortFromCharlie > 0 {
			c.finalizeLocked(false)
		}
		return
	}

	// Any other source is Charlie.
	if sess, ok := c.transport.PeerState(from); ok {
		recent := now.Sub(sess.LastAck) < CharlieRecentPeriod || now.Sub(sess.LastSend) < CharlieRecentPeriod
		if recent {
			c.metrics.KnownCharlieShortcut.Inc()
			c.log.Debug("reachability.alice: known-peer shortcut, reporting unknown without finalising record", fmtTestLog(rec)...)
			c.report.deliver(VerdictUnknown)
			c.current = nil
			c.currentComplete = true
			return
		}
	}

	if !rec.ReceiveCharlieTime.IsZero() {
		// Second Charlie packet: carries the endpoint she saw Alice arrive
		// from, for comparison against what Bob saw.
		if env.Port == 0 || (len(env.IP) != net.IPv4len && len(env.IP) != net.IPv6len) {
			c.metrics.BadEnvelopeDrops.WithLabelValues("charlie").Inc()
			c.log.Debug("reachability.alice: dropping malformed reflected endpoint from charlie", fmtTestLog(rec)...)
			return
		}
		rec.AliceIPFromCharlie = env.IP
		rec.AlicePortFromCharlie = env.Port
		if !rec.ReceiveBobTime.IsZero() {
			c.finalizeLocked(true)
		}
		return
	}

	// First Charlie packet: introduces her and triggers an immediate direct
	// send, which counts against Alice's own relay cap like any other send.
	rec.CharlieIP = from.IP
	rec.CharliePort = from.Port
	rec.CharlieIntroKey = env.IntroKey
	rec.ReceiveCharlieTime = now

	rec.PacketsRelayed++
	if rec.PacketsRelayed > rec.RelayCap() {
		c.log.Debug("reachability.alice: relay cap reached on charlie introduction", fmtTestLog(rec)...)
		return
	}
	pkt := c.pb.AliceToCharlie(rec.Nonce, c.transport.IntroKey(), rec.CharlieIntroKey)
	c.sendAs(RoleAlice, rec.CharlieEndpoint(), pkt)
	rec.LastSendTime = now
}

// finalizeLocked classifies the outstanding test per §4.1's decision table
// and reports it. c.mu must be held. If forget is true the current test is
// cleared immediately; otherwise the completed record stays in c.current
// (marked complete, so it no longer receives replies or ticks) until the
// next RunTest replaces it.
func (c *Coordinator) finalizeLocked(forget bool) {
	rec := c.current
	if rec == nil || c.currentComplete {
		return
	}
	c.currentComplete = true

	verdict := classify(rec)
	c.report.deliver(verdict)
	c.log.Info("reachability.alice: test complete", append(fmtTestLog(rec), "verdict", verdict.String())...)

	if forget {
		c.current = nil
	}
}

// classify implements §4.1's finalisation decision table.
func classify(rec *TestRecord) Verdict {
	switch {
	case rec.AlicePortFromCharlie > 0 && rec.AlicePortFromCharlie == rec.AlicePort && rec.AliceIPFromCharlie != nil && rec.AliceIPFromCharlie.Equal(rec.AliceIP):
		return VerdictOK
	case rec.AlicePortFromCharlie > 0:
		return VerdictDifferent
	case !rec.ReceiveCharlieTime.IsZero():
		return VerdictUnknown
	case !rec.ReceiveBobTime.IsZero():
		return VerdictRejectUnsolicited
	default:
		return VerdictUnknown
	}
}
