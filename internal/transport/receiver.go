package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/netreach/prt/internal/wire"
)

// HandleRxFunc is invoked for every envelope that passes MAC verification
// and §6.4 structural checks; in production cmd/prtd supplies a closure that
// converts the raw source IP/port and wire.Payload into reachability's
// Endpoint/Envelope and calls reachability.Coordinator.ReceiveTest.
type HandleRxFunc func(fromIP net.IP, fromPort int, kind wire.Kind, p wire.Payload)

// Receiver is the long-lived read-loop goroutine, grounded directly on the
// teacher's liveness.Receiver (liveness/receiver.go): same deadline/retry
// structure, same rate-limited warning on transient errors, same fatal-error
// exit. PRT's framing differs (HMAC-verified wire.Payload instead of a BFD
// ControlPacket) and key selection depends on the packet Kind rather than
// being fixed.
type Receiver struct {
	log      *slog.Logger
	conn     *UDPConn
	dir      *Directory
	introKey func() [32]byte
	handleRx HandleRxFunc
	metrics  *Metrics

	warnEvery time.Duration
	warnLast  time.Time
	warnMu    sync.Mutex
}

func NewReceiver(log *slog.Logger, conn *UDPConn, dir *Directory, introKey func() [32]byte, handleRx HandleRxFunc, metrics *Metrics) *Receiver {
	return &Receiver{
		log:       log,
		conn:      conn,
		dir:       dir,
		introKey:  introKey,
		handleRx:  handleRx,
		metrics:   metrics,
		warnEvery: 5 * time.Second,
	}
}

func (r *Receiver) warn(msg string, args ...any) {
	now := time.Now()
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	if r.warnLast.IsZero() || now.Sub(r.warnLast) >= r.warnEvery {
		r.warnLast = now
		r.log.Warn(msg, args...)
	}
}

// Run executes the receive loop until ctx is canceled or the socket fails.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.Debug("transport.recv: rx loop started")
	buf := make([]byte, 1500)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("socket closed during SetReadDeadline: %w", err)
			}
			r.warn("transport.recv: SetReadDeadline error", "error", err)
			if isFatalNetErr(err) {
				return fmt.Errorf("fatal network error during SetReadDeadline: %w", err)
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		n, from, _, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("socket closed during ReadFrom: %w", err)
			}
			r.metrics.ReadSocketErrors.WithLabelValues("read").Inc()
			r.warn("transport.recv: non-timeout read error", "error", err)
			if isFatalNetErr(err) {
				return fmt.Errorf("fatal network error during ReadFrom: %w", err)
			}
			continue
		}

		r.handlePacket(buf[:n], from)
	}
}

func (r *Receiver) handlePacket(raw []byte, from *net.UDPAddr) {
	kind, err := wire.PeekKind(raw)
	if err != nil {
		r.metrics.PacketsRxInvalid.WithLabelValues("empty").Inc()
		return
	}

	baseKey, ok := r.verificationKey(kind, from)
	if !ok {
		r.metrics.PacketsRxInvalid.WithLabelValues("no_key").Inc()
		return
	}
	nonce, err := wire.PeekNonce(raw)
	if err != nil {
		r.metrics.PacketsRxInvalid.WithLabelValues("short").Inc()
		return
	}

	p, err := wire.Unmarshal(raw, wire.DerivePacketMACKey(baseKey, nonce))
	if err != nil {
		r.metrics.PacketsRxInvalid.WithLabelValues("decode").Inc()
		r.log.Debug("transport.recv: dropping undecodable packet", "from", from, "error", err)
		return
	}

	r.metrics.PacketsRx.Inc()
	r.handleRx(from.IP, from.Port, kind, p)
}

// verificationKey picks the key a packet of the given Kind must be MAC'd
// with: an established session's MAC key for the two "to an authenticated
// peer" shapes, the local intro-key for the two "to an unacquainted peer"
// shapes (§6.2).
func (r *Receiver) verificationKey(kind wire.Kind, from *net.UDPAddr) ([]byte, bool) {
	switch kind {
	case wire.KindAliceToBob, wire.KindBobToCharlie:
		entry, ok := r.dir.Get(from.IP, from.Port)
		if !ok {
			return nil, false
		}
		return entry.MACKey, true
	case wire.KindAliceToCharlie, wire.KindBobToAlice:
		ik := r.introKey()
		return ik[:], true
	}
	return nil, false
}

func isFatalNetErr(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var se syscall.Errno
	if errors.As(err, &se) {
		switch se {
		case syscall.EBADF, syscall.ENETDOWN, syscall.ENODEV, syscall.ENXIO:
			return true
		}
	}
	var oe *net.OpError
	if errors.As(err, &oe) && !oe.Timeout() && !oe.Temporary() {
		return true
	}
	return false
}
