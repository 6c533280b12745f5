package reachability

// dispatchResponder is the non-Alice half of the common dispatch (§4.2): it
// looks env.Nonce up in the active-test table and routes to the matching
// Bob or Charlie responder operation (C6), or starts a brand new Bob/Charlie
// record when nothing is tracked yet for this nonce.
func (c *Coordinator) dispatchResponder(from Endpoint, env Envelope) {
	rec, ok := c.table.Get(env.Nonce)
	if !ok {
		if len(env.IP) == 0 || env.Port <= 0 {
			c.receiveFromAliceAsBob(from, env, nil)
			return
		}
		if c.ring.Contains(env.Nonce) {
			c.log.Debug("reachability: dropping straggler for our own completed nonce", "nonce", env.Nonce)
			return
		}
		c.receiveFromBobAsCharlie(from, env, nil)
		return
	}

	switch rec.Role {
	case RoleBob:
		switch {
		case from.Equal(rec.AliceEndpoint()):
			c.receiveFromAliceAsBob(from, env, rec)
		case from.Equal(rec.CharlieEndpoint()):
			c.receiveFromCharlieAsBob(from, env, rec)
		default:
			c.metrics.FourthPartyDrops.Inc()
			c.log.Warn("reachability: dropping fourth-party packet on bob record", "nonce", env.Nonce, "from", from)
		}
	case RoleCharlie:
		if len(env.IP) == 0 || env.Port <= 0 {
			c.receiveFromAliceAsCharlie(from, env, rec)
		} else {
			c.receiveFromBobAsCharlie(from, env, rec)
		}
	}
}

// receiveFromAliceAsBob handles a packet addressed to us as Bob, either
// starting a new record (state == nil) or continuing one.
func (c *Coordinator) receiveFromAliceAsBob(from Endpoint, env Envelope, rec *TestRecord) {
	isNew := rec == nil

	var charlie Endpoint
	var charlieIntroKey [32]byte
	if isNew {
		var ok bool
		charlie, charlieIntroKey, ok = c.transport.PickTestPeer(from)
		if !ok {
			c.log.Warn("reachability.bob: no test-capable peer available to recruit as charlie", "from", from)
			return
		}
	} else {
		charlie = rec.CharlieEndpoint()
		charlieIntroKey = rec.CharlieIntroKey
	}

	sess, ok := c.transport.PeerState(charlie)
	if !ok {
		c.log.Warn("reachability.bob: no session with chosen charlie", "charlie", charlie)
		return
	}

	now := c.clk.Now()
	if !isNew && now.Sub(rec.ReceiveAliceTime) < ResendTimeout/2 {
		return
	}
	if isNew && (c.throttle.ShouldThrottle(from.IP) || (len(env.IP) > 0 && c.throttle.ShouldThrottle(env.IP))) {
		c.metrics.ThrottleDrops.Inc()
		return
	}

	if isNew {
		rec = &TestRecord{Nonce: env.Nonce, Role: RoleBob, BeginTime: now}
	}
	rec.AliceIP = from.IP
	rec.AlicePort = from.Port
	rec.AliceIntroKey = env.IntroKey
	rec.CharlieIP = charlie.IP
	rec.CharliePort = charlie.Port
	rec.CharlieIntroKey = charlieIntroKey
	rec.ReceiveAliceTime = now
	rec.PacketsRelayed++
	capExceeded := rec.PacketsRelayed > rec.RelayCap()

	if isNew {
		if !c.table.Insert(rec) {
			c.metrics.ActiveTableFull.Inc()
			c.log.Warn("reachability.bob: active-test table full, dropping", "nonce", rec.Nonce)
			return
		}
		c.sched.ScheduleRemoveTest(rec.Nonce, MaxCharlieLifetime)
	}
	if capExceeded {
		c.log.Debug("reachability.bob: relay cap reached", fmtTestLog(rec)...)
		return
	}

	pkt := c.pb.BobToCharlie(rec.Nonce, rec.AliceIP, rec.AlicePort, rec.AliceIntroKey, sess.CipherKey, sess.MACKey)
	c.sendAs(RoleBob, charlie, pkt)
}

// receiveFromCharlieAsBob handles Charlie's acknowledgement of a relay we
// already started.
func (c *Coordinator) receiveFromCharlieAsBob(from Endpoint, env Envelope, rec *TestRecord) {
	now := c.clk.Now()
	if !rec.ReceiveCharlieTime.IsZero() && now.Sub(rec.ReceiveCharlieTime) < ResendTimeout/2 {
		return
	}
	rec.PacketsRelayed++
	if rec.PacketsRelayed > rec.RelayCap() {
		return
	}
	rec.ReceiveCharlieTime = now

	pkt := c.pb.BobToAlice(rec.Nonce, rec.AliceIP, rec.AlicePort, rec.CharlieIntroKey, rec.AliceIntroKey)
	c.sendAs(RoleBob, rec.AliceEndpoint(), pkt)
}

// receiveFromBobAsCharlie handles a request to act as Charlie for someone
// else's test, either starting a new record or re-acknowledging a
// retransmit from Bob.
func (c *Coordinator) receiveFromBobAsCharlie(from Endpoint, env Envelope, rec *TestRecord) {
	isNew := rec == nil
	now := c.clk.Now()

	if !isNew && now.Sub(rec.ReceiveBobTime) < ResendTimeout/2 {
		return
	}
	if isNew && (c.throttle.ShouldThrottle(from.IP) || (len(env.IP) > 0 && c.throttle.ShouldThrottle(env.IP))) {
		c.metrics.ThrottleDrops.Inc()
		return
	}

	sess, ok := c.transport.PeerState(from)
	if !ok {
		c.log.Debug("reachability.charlie: refusing to help unauthenticated bob", "from", from)
		return
	}

	if isNew {
		rec = &TestRecord{Nonce: env.Nonce, Role: RoleCharlie, BeginTime: now}
	}
	rec.AliceIP = env.IP
	rec.AlicePort = env.Port
	rec.AliceIntroKey = env.IntroKey
	rec.BobIP = from.IP
	rec.BobPort = from.Port
	rec.BobCipherKey = sess.CipherKey
	rec.BobMACKey = sess.MACKey
	rec.PacketsRelayed++
	capExceeded := rec.PacketsRelayed > rec.RelayCap()
	rec.ReceiveBobTime = now
	rec.LastSendTime = now

	if isNew {
		if !c.table.Insert(rec) {
			c.metrics.ActiveTableFull.Inc()
			c.log.Warn("reachability.charlie: active-test table full, dropping", "nonce", rec.Nonce)
			return
		}
		c.sched.ScheduleRemoveTest(rec.Nonce, MaxCharlieLifetime)
	}
	if capExceeded {
		c.log.Debug("reachability.charlie: relay cap reached", fmtTestLog(rec)...)
		return
	}

	ack := c.pb.BobToCharlie(rec.Nonce, rec.AliceIP, rec.AlicePort, rec.AliceIntroKey, rec.BobCipherKey, rec.BobMACKey)
	c.sendAs(RoleCharlie, rec.BobEndpoint(), ack)

	toAlice := c.pb.BobToAlice(rec.Nonce, nil, 0, c.transport.IntroKey(), rec.AliceIntroKey)
	c.sendAs(RoleCharlie, rec.AliceEndpoint(), toAlice)
}

// receiveFromAliceAsCharlie handles Alice contacting an already-recruited
// Charlie directly. The reply reflects the endpoint Charlie actually
// observed Alice arrive from — this is what lets Alice compare Bob's and
// Charlie's views of her own address and detect a symmetric NAT.
func (c *Coordinator) receiveFromAliceAsCharlie(from Endpoint, env Envelope, rec *TestRecord) {
	now := c.clk.Now()
	if !rec.ReceiveAliceTime.IsZero() && now.Sub(rec.ReceiveAliceTime) < ResendTimeout/2 {
		return
	}
	rec.PacketsRelayed++
	if rec.PacketsRelayed > rec.RelayCap() {
		return
	}
	rec.ReceiveAliceTime = now
	rec.AliceIntroKey = env.IntroKey

	pkt := c.pb.BobToAlice(rec.Nonce, from.IP, from.Port, c.transport.IntroKey(), rec.AliceIntroKey)
	c.sendAs(RoleCharlie, from, pkt)
}

// onRemoveTest is the scheduler's one-shot expiry for a Bob/Charlie record
// (§4.3, §9 design note): it is a pure nonce resolution against the table,
// harmless if the record has already been removed or replaced.
func (c *Coordinator) onRemoveTest(nonce uint32) {
	c.table.Remove(nonce)
}
