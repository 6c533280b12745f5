package reachability

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ActiveTestTable is the bounded nonce→record map for Bob/Charlie duties
// (C3). Capacity is enforced on Insert; removal is primarily driven by the
// scheduler's one-shot RemoveTest event per nonce (§4.3 design note: events
// are plain {nonce, kind} values resolved against the table at fire time),
// with the cache's own TTL as a backstop in case a RemoveTest event is ever
// lost.
type ActiveTestTable struct {
	cache *ttlcache.Cache[uint32, *TestRecord]
	max   int

	mu  sync.Mutex
	len int
}

func NewActiveTestTable(max int, ttl time.Duration) *ActiveTestTable {
	c := ttlcache.New[uint32, *TestRecord](
		ttlcache.WithTTL[uint32, *TestRecord](ttl),
	)
	t := &ActiveTestTable{cache: c, max: max}
	c.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[uint32, *TestRecord]) {
		t.mu.Lock()
		t.len--
		t.mu.Unlock()
	})
	go c.Start()
	return t
}

// Insert adds rec if the table is under capacity, returning false (and
// leaving the table untouched) if it is full. The caller is responsible for
// dropping the triggering packet and logging a warning on false, per §3.
func (t *ActiveTestTable) Insert(rec *TestRecord) bool {
	t.mu.Lock()
	if t.len >= t.max {
		t.mu.Unlock()
		return false
	}
	t.len++
	t.mu.Unlock()
	t.cache.Set(rec.Nonce, rec, ttlcache.DefaultTTL)
	return true
}

func (t *ActiveTestTable) Get(nonce uint32) (*TestRecord, bool) {
	item := t.cache.Get(nonce)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Remove is idempotent: removing an already-absent nonce is a no-op, which
// is what lets RemoveTest and the cache's own TTL race harmlessly.
func (t *ActiveTestTable) Remove(nonce uint32) {
	t.cache.Delete(nonce)
}

func (t *ActiveTestTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.len
}

func (t *ActiveTestTable) Stop() { t.cache.Stop() }
