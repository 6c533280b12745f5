package transport

import (
	"net"
	"sync"
	"time"
)

// externalIP tracks this node's best current estimate of its own public
// IP (§6.1 get_external_ip). It refreshes from local interfaces on a TTL,
// grounded on the teacher's ifCache refresh-on-stale pattern
// (liveness/ifcache.go), but an externally-learned value (e.g. the
// endpoint Bob reflected back to us in a past OK test) always takes
// priority once set, since a local interface address is frequently behind
// a NAT and not actually public.
type externalIP struct {
	mu        sync.RWMutex
	learned   net.IP
	iface     net.IP
	updatedAt time.Time
	ttl       time.Duration
}

func newExternalIP(ttl time.Duration) *externalIP {
	return &externalIP{ttl: ttl}
}

func (e *externalIP) Get() net.IP {
	e.mu.RLock()
	learned := e.learned
	e.mu.RUnlock()
	if learned != nil {
		return learned
	}

	e.mu.RLock()
	stale := time.Since(e.updatedAt) > e.ttl
	cur := e.iface
	e.mu.RUnlock()
	if !stale {
		return cur
	}
	e.refresh()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.iface
}

// Learn records an externally-confirmed public IP, overriding the local
// interface heuristic.
func (e *externalIP) Learn(ip net.IP) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.learned = ip
}

func (e *externalIP) refresh() {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return
	}
	var best net.IP
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() || ipn.IP.To4() == nil {
			continue
		}
		best = ipn.IP
		break
	}
	e.mu.Lock()
	e.iface = best
	e.updatedAt = time.Now()
	e.mu.Unlock()
}
