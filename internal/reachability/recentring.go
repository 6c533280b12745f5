package reachability

import "sync"

// RecentRing is the FIFO of recent Alice nonces (C4). It is used to
// recognise packets arriving after a local test ended, and to prevent
// spoofed traffic from reviving a completed nonce (§4.4).
//
// Lookup is O(n), but n is bounded by MaxRecentTests and small.
type RecentRing struct {
	mu     sync.Mutex
	max    int
	nonces []uint32
}

func NewRecentRing(max int) *RecentRing {
	return &RecentRing{max: max, nonces: make([]uint32, 0, max)}
}

// Push appends nonce, evicting the oldest entry first if the ring is full.
func (r *RecentRing) Push(nonce uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nonces) >= r.max {
		r.nonces = r.nonces[1:]
	}
	r.nonces = append(r.nonces, nonce)
}

// Contains reports whether nonce was pushed and has not since been evicted.
func (r *RecentRing) Contains(nonce uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nonces {
		if n == nonce {
			return true
		}
	}
	return false
}

// Len returns the current number of tracked nonces (never exceeds max).
func (r *RecentRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nonces)
}
