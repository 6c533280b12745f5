package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// PeerEntry is what the directory stores per connected peer: the session
// this node shares with them, for the cipher/MAC-key-based message shapes,
// plus the liveness timestamps the known-Charlie short-circuit reads.
type PeerEntry struct {
	CipherKey []byte
	MACKey    []byte
	IntroKey  [32]byte
	LastAck   time.Time
	LastSend  time.Time
}

// Directory is the session/intro-key lookup the transport needs for
// get_peer_state and pick_test_peer (§6.1), including the peers' published
// intro-keys that pick_test_peer returns. Our own intro-key is not kept
// here; Transport holds it. Backed by
// ttlcache like the reachability package's own bounded maps (C2, C3) — see
// DESIGN.md for why this one dependency does triple duty.
type Directory struct {
	cache *ttlcache.Cache[string, *PeerEntry]

	mu       sync.RWMutex
	order    []string // endpoint keys, oldest first, for round-robin pick_test_peer
	orderPos int
}

// NewDirectory builds a directory whose entries expire after idleTTL of
// inactivity (a peer we haven't talked to in a while is no longer
// test-capable).
func NewDirectory(idleTTL time.Duration) *Directory {
	c := ttlcache.New[string, *PeerEntry](ttlcache.WithTTL[string, *PeerEntry](idleTTL))
	d := &Directory{cache: c}
	c.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *PeerEntry]) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.removeFromOrderLocked(item.Key())
	})
	go c.Start()
	return d
}

func endpointKey(ip net.IP, port int) string {
	return net.JoinHostPort(ip.String(), strconv.Itoa(port))
}

// Upsert records or replaces a peer session entry as given. It does not
// stamp LastSend/LastAck; those carry whatever the caller set on entry.
func (d *Directory) Upsert(ip net.IP, port int, entry *PeerEntry) {
	k := endpointKey(ip, port)
	if existing := d.cache.Get(k); existing == nil {
		d.mu.Lock()
		d.order = append(d.order, k)
		d.mu.Unlock()
	}
	d.cache.Set(k, entry, ttlcache.DefaultTTL)
}

func (d *Directory) Get(ip net.IP, port int) (*PeerEntry, bool) {
	item := d.cache.Get(endpointKey(ip, port))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// PickOther returns a peer other than exclude, round-robin, for
// pick_test_peer.
func (d *Directory) PickOther(exclude string) (string, *PeerEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.order)
	for i := 0; i < n; i++ {
		idx := (d.orderPos + i) % n
		k := d.order[idx]
		if k == exclude {
			continue
		}
		item := d.cache.Get(k)
		if item == nil {
			continue
		}
		d.orderPos = (idx + 1) % n
		return k, item.Value(), true
	}
	return "", nil, false
}

func (d *Directory) removeFromOrderLocked(k string) {
	for i, e := range d.order {
		if e == k {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}

func (d *Directory) Stop() { d.cache.Stop() }
