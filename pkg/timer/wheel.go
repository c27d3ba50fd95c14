// Package timer implements a single-threaded timer group: a set of
// named, relative timers whose expiry is observed by polling rather than by
// spawning a goroutine per timer, matching the cooperative single-threaded
// event loop described for the rest of the daemon. Groups are independent of
// each other but all read the same monotonic clock.
package timer

import (
	"container/heap"
	"time"
)

// Timer names one scheduled deadline within a Group. Callers choose their
// own naming scheme (an EUI-64-derived key, an enum, a string) — the group
// itself treats it as an opaque comparable value.
type Timer = interface{}

type entry struct {
	key      Timer
	deadline time.Time
	gen      uint64
	index    int // heap index, maintained by container/heap
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Group is one independent timer wheel. The zero value is not usable; build
// one with NewGroup. Not safe for concurrent use — callers on the
// single-threaded event loop serialize access themselves.
type Group struct {
	now     func() time.Time
	queue   entryHeap
	active  map[Timer]*entry
	gen     uint64
	wake    chan struct{}
}

// NewGroup creates an empty timer group using the real monotonic clock.
func NewGroup() *Group {
	return newGroupWithClock(time.Now)
}

func newGroupWithClock(now func() time.Time) *Group {
	g := &Group{
		now:    now,
		active: make(map[Timer]*entry),
		wake:   make(chan struct{}, 1),
	}
	heap.Init(&g.queue)
	return g
}

// StartRel (re)schedules key to fire d from now, replacing any pending
// deadline already registered under the same key.
func (g *Group) StartRel(key Timer, d time.Duration) {
	g.Stop(key)
	g.gen++
	e := &entry{key: key, deadline: g.now().Add(d), gen: g.gen}
	g.active[key] = e
	heap.Push(&g.queue, e)
	g.notify()
}

// Stop cancels key's pending deadline, if any. A timer's callback — i.e. its
// appearance in a later Expired() call — never happens after Stop returns,
// because the heap entry is dropped from active immediately and later
// encountered entries for the same key are recognized as stale by
// generation and discarded.
func (g *Group) Stop(key Timer) {
	if e, ok := g.active[key]; ok {
		delete(g.active, key)
		if e.index >= 0 {
			heap.Remove(&g.queue, e.index)
		}
	}
}

// Pending reports whether key currently has a scheduled, unfired deadline.
func (g *Group) Pending(key Timer) bool {
	_, ok := g.active[key]
	return ok
}

// NextDeadline returns the earliest pending deadline and whether one exists,
// used by the host event loop to size its poll timeout.
func (g *Group) NextDeadline() (time.Time, bool) {
	if len(g.queue) == 0 {
		return time.Time{}, false
	}
	return g.queue[0].deadline, true
}

// Expired pops and returns every key whose deadline is at or before now,
// earliest first, clearing their entries. Call in a loop from the host event
// loop whenever Chan() signals or NextDeadline() has passed.
func (g *Group) Expired() []Timer {
	now := g.now()
	var fired []Timer
	for len(g.queue) > 0 && !g.queue[0].deadline.After(now) {
		e := heap.Pop(&g.queue).(*entry)
		if cur, ok := g.active[e.key]; ok && cur.gen == e.gen {
			delete(g.active, e.key)
			fired = append(fired, e.key)
		}
	}
	return fired
}

// Chan returns the edge-triggered wake channel: a receive unblocks at least
// once after every StartRel call, standing in for the eventfd/self-pipe an
// OS event loop would poll. Draining it does not imply a timer is due — the
// caller still calls Expired()/NextDeadline() to find out what, if anything,
// actually fired.
func (g *Group) Chan() <-chan struct{} {
	return g.wake
}

func (g *Group) notify() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}
