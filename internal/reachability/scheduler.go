package reachability

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netreach/prt/internal/clock"
)

// eventKind distinguishes the two one-shot/repeating event families the
// coordinator schedules (§4, §6.3, §9 design note).
type eventKind uint8

const (
	eventContinueTest eventKind = iota // Alice driver retransmit/give-up/finalise tick
	eventRemoveTest                    // Bob/Charlie record expiry
)

// event is a scheduled action. It closes over a nonce, not a record
// pointer, so that a record replaced or removed before the event fires is
// simply a no-op at resolution time instead of a dangling reference (§9
// design note, taken directly from the teacher's cyclic-timer discussion).
type event struct {
	when  time.Time
	kind  eventKind
	nonce uint32
	seq   uint64
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// EventQueue is a thread-safe, time-ordered priority queue of scheduled
// events. Grounded directly on the teacher's liveness.EventQueue.
type EventQueue struct {
	mu  sync.Mutex
	pq  eventHeap
	seq uint64
}

func NewEventQueue() *EventQueue {
	h := eventHeap{}
	heap.Init(&h)
	return &EventQueue{pq: h}
}

func (q *EventQueue) Push(e *event) {
	q.mu.Lock()
	q.seq++
	e.seq = q.seq
	heap.Push(&q.pq, e)
	q.mu.Unlock()
}

// PopIfDue returns the next event if due (<= now), else nil and the
// duration the caller should wait before checking again.
func (q *EventQueue) PopIfDue(now time.Time) (*event, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pq.Len() == 0 {
		return nil, 10 * time.Millisecond
	}
	ev := q.pq[0]
	if d := ev.when.Sub(now); d > 0 {
		return nil, d
	}
	return heap.Pop(&q.pq).(*event), 0
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}

// Scheduler is the Timer service client (C8): it drives the Alice driver's
// ContinueTest ticks and the Bob/Charlie RemoveTest expiries from a single
// event loop, grounded on the teacher's Scheduler.Run.
type Scheduler struct {
	log *slog.Logger
	clk clock.Clock
	eq  *EventQueue

	onContinueTest func(nonce uint32)
	onRemoveTest   func(nonce uint32)
}

func NewScheduler(log *slog.Logger, clk clock.Clock, onContinueTest, onRemoveTest func(nonce uint32)) *Scheduler {
	return &Scheduler{
		log:            log,
		clk:            clk,
		eq:             NewEventQueue(),
		onContinueTest: onContinueTest,
		onRemoveTest:   onRemoveTest,
	}
}

// ScheduleContinueTest arms (or re-arms) the ContinueTest tick for nonce,
// delay from now.
func (s *Scheduler) ScheduleContinueTest(nonce uint32, delay time.Duration) {
	s.eq.Push(&event{when: s.clk.Now().Add(delay), kind: eventContinueTest, nonce: nonce})
}

// ScheduleRemoveTest arms the one-shot expiry for a Bob/Charlie record.
func (s *Scheduler) ScheduleRemoveTest(nonce uint32, delay time.Duration) {
	s.eq.Push(&event{when: s.clk.Now().Add(delay), kind: eventRemoveTest, nonce: nonce})
}

// QueueLen reports the number of pending events, for metrics/tests.
func (s *Scheduler) QueueLen() int { return s.eq.Len() }

// Run executes the scheduler's event loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Debug("reachability.scheduler: event loop started")
	t := s.clk.NewTimer(time.Hour)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := s.clk.Now()
		ev, wait := s.eq.PopIfDue(now)
		if ev == nil {
			if wait <= 0 {
				wait = 10 * time.Millisecond
			}
			if !t.Stop() {
				select {
				case <-t.Chan():
				default:
				}
			}
			t.Reset(wait)
			select {
			case <-ctx.Done():
				return nil
			case <-t.Chan():
				continue
			}
		}

		switch ev.kind {
		case eventContinueTest:
			s.onContinueTest(ev.nonce)
		case eventRemoveTest:
			s.onRemoveTest(ev.nonce)
		}
	}
}
