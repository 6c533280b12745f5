package reachability

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/netreach/prt/internal/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator is the single entry point for the reachability subsystem: it
// owns the current locally-initiated (Alice) test, the bounded Bob/Charlie
// active-test table (C3), the recent-nonce ring (C4), the per-IP throttle
// (C2) and the scheduler (C8), and dispatches every inbound packet to the
// right role handler (§4.2 common dispatch).
//
// Following the teacher's liveness.Manager shape: one coarse mutex for the
// small amount of "current state" (the single outstanding Alice test), plus
// independently-synchronized bounded collections for everything else.
type Coordinator struct {
	log *slog.Logger
	clk clock.Clock

	transport Transport
	pb        PacketBuilder
	metrics   *Metrics

	table    *ActiveTestTable
	ring     *RecentRing
	throttle *Throttle
	sched    *Scheduler
	report   *reporter

	mu              sync.Mutex
	current         *TestRecord
	currentComplete bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errCh  chan error
}

// NewCoordinator builds a Coordinator and starts its scheduler loop. Callers
// must call Close to release resources.
func NewCoordinator(ctx context.Context, cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("reachability: invalid config: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Coordinator{
		log:       cfg.Logger,
		clk:       cfg.Clock,
		transport: cfg.Transport,
		pb:        cfg.PacketBuilder,
		table:     NewActiveTestTable(MaxActiveTests, MaxCharlieLifetime),
		ring:      NewRecentRing(MaxRecentTests),
		throttle:  NewThrottle(MaxPerIP, ThrottleCleanTime),
		ctx:       cctx,
		cancel:    cancel,
		errCh:     make(chan error, 1),
	}
	c.sched = NewScheduler(c.log, c.clk, c.onContinueTest, c.onRemoveTest)
	var reg prometheus.Registerer
	if cfg.MetricsRegistry != nil {
		reg = cfg.MetricsRegistry
	}
	c.metrics = NewMetrics(reg, func() float64 { return float64(c.table.Len()) }, func() float64 { return float64(c.sched.QueueLen()) })
	c.report = newReporter(c.transport, c.metrics)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.sched.Run(cctx); err != nil {
			select {
			case c.errCh <- err:
			default:
			}
		}
	}()

	return c, nil
}

// Close stops the scheduler loop and the bounded collections' background
// sweeps, and waits for the scheduler goroutine to exit.
func (c *Coordinator) Close() error {
	c.cancel()
	c.wg.Wait()
	c.table.Stop()
	c.throttle.Stop()
	select {
	case err := <-c.errCh:
		return err
	default:
		return nil
	}
}

// Err reports a non-nil error if the scheduler loop exited abnormally.
func (c *Coordinator) Err() error {
	select {
	case err := <-c.errCh:
		return err
	default:
		return nil
	}
}

// ReceiveTest is the single inbound entry point (§4.2 common dispatch): it
// performs the validation §6.4 assigns to receipt, then routes to the Alice
// reply handler or one of the four role-specific responder operations (C6)
// depending on who is addressed and what state already exists for
// env.Nonce.
func (c *Coordinator) ReceiveTest(from Endpoint, env Envelope) {
	if !c.validateEnvelope(from, env) {
		return
	}

	c.mu.Lock()
	isCurrentReply := c.current != nil && !c.currentComplete && c.current.Nonce == env.Nonce
	c.mu.Unlock()
	if isCurrentReply {
		c.receiveTestReply(from, env)
		return
	}

	// Not our own outstanding test: we are Bob or Charlie for someone else's
	// test, keyed by nonce in the active-test table.
	c.dispatchResponder(from, env)
}

// validateEnvelope implements §6.4's centralised checks, run before any
// dispatch. A reply for our own outstanding test is still subject to these
// (only the throttle, per §4.3, is bypassed for such replies).
func (c *Coordinator) validateEnvelope(from Endpoint, env Envelope) bool {
	if from.Port < 1024 || from.Port > 65535 {
		c.metrics.TestBadIP.Inc()
		c.log.Debug("reachability: dropping packet from out-of-range source port", "from", from)
		return false
	}
	if !c.transport.IsValid(from.IP) {
		c.metrics.TestBadIP.Inc()
		c.log.Debug("reachability: dropping packet from invalid/blocklisted source", "from", from)
		return false
	}
	ext := c.transport.ExternalIP()
	if sameSlash16(from.IP, ext) {
		c.metrics.TestBadIP.Inc()
		c.log.Debug("reachability: dropping packet from source sharing our external /16", "from", from)
		return false
	}
	if env.Port != 0 && (env.Port < 1024 || env.Port > 65535) {
		c.metrics.TestBadIP.Inc()
		c.log.Debug("reachability: dropping packet with out-of-range embedded port", "from", from)
		return false
	}
	if len(env.IP) > 0 && !c.transport.IsValid(env.IP) {
		c.metrics.TestBadIP.Inc()
		c.log.Debug("reachability: dropping packet with invalid/blocklisted embedded IP", "from", from)
		return false
	}
	if len(env.IP) > 0 && sameSlash16(env.IP, ext) {
		if c.ring.Contains(env.Nonce) {
			c.log.Info("reachability: dropping straggler reflecting our own external /16", "nonce", env.Nonce)
		} else {
			c.metrics.TestBadIP.Inc()
			c.log.Warn("reachability: dropping packet reflecting our own external /16", "nonce", env.Nonce, "from", from)
		}
		return false
	}
	return true
}

// sameSlash16 reports whether a and b share their first two address bytes,
// the "too-close-peer" guard used both for run_test's bob_ip check and for
// the central receive_test validation (§4.1, §6.4).
func sameSlash16(a, b net.IP) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 != nil && b4 != nil {
		return a4[0] == b4[0] && a4[1] == b4[1]
	}
	a16, b16 := a.To16(), b.To16()
	if a16 == nil || b16 == nil {
		return false
	}
	return a16[0] == b16[0] && a16[1] == b16[1]
}

func (c *Coordinator) sendAs(role Role, dst Endpoint, pkt []byte) {
	c.transport.Send(dst, pkt)
	c.metrics.PacketsSent.WithLabelValues(role.String()).Inc()
}

func fmtTestLog(rec *TestRecord) []any {
	return []any{"nonce", rec.Nonce, "role", rec.Role.String()}
}
