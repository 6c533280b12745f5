package reachability

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Throttle is the per-IP test-traffic limiter (C2). Each IP gets up to
// MaxPerIP hits within a ThrottleCleanTime window before shouldThrottle
// starts returning true; the window is a fixed TTL per IP rather than a
// true sliding window, matching the "ages out on a periodic sweep"
// description in spec §3.
//
// Backed by ttlcache so expiry ("the periodic sweep") is the library's own
// background loop instead of a hand-rolled one — see DESIGN.md.
type Throttle struct {
	cache *ttlcache.Cache[string, *atomic.Int64]
	max   int64
}

func NewThrottle(max int, window time.Duration) *Throttle {
	c := ttlcache.New[string, *atomic.Int64](
		ttlcache.WithTTL[string, *atomic.Int64](window),
		ttlcache.WithDisableTouchOnHit[string, *atomic.Int64](),
	)
	go c.Start()
	return &Throttle{cache: c, max: int64(max)}
}

// ShouldThrottle reports whether ip has already reached MaxPerIP hits
// within the current window. If not, it counts this hit and returns false.
func (t *Throttle) ShouldThrottle(ip net.IP) bool {
	if ip == nil {
		return false
	}
	key := ip.String()
	item := t.cache.Get(key)
	if item == nil {
		cnt := &atomic.Int64{}
		cnt.Store(1)
		t.cache.Set(key, cnt, ttlcache.DefaultTTL)
		return false
	}
	cnt := item.Value()
	for {
		cur := cnt.Load()
		if cur >= t.max {
			return true
		}
		if cnt.CompareAndSwap(cur, cur+1) {
			return false
		}
	}
}

// Stop shuts down the background expiry loop.
func (t *Throttle) Stop() { t.cache.Stop() }
