package hopper

import (
	"container/heap"
	"slices"
)

// asyncKind discriminates queued event kinds. Expiry sorts before stepping
// at an identical (time, particle) key: a particle whose time is up does
// not act first.
type asyncKind uint8

const (
	evExpire asyncKind = iota
	evStep
)

// String returns the queued kind's checkpoint name.
func (k asyncKind) String() string {
	if k == evExpire {
		return "expire"
	}
	return "step"
}

// parseAsyncKind converts a checkpoint name back into an asyncKind.
func parseAsyncKind(s string) (asyncKind, bool) {
	switch s {
	case "expire":
		return evExpire, true
	case "step":
		return evStep, true
	default:
		return evStep, false
	}
}

// queuedEvent is one pending asynchronous opportunity.
type queuedEvent struct {
	at   float64
	id   ID
	kind asyncKind
	gen  uint64
}

// eventQueue is the asynchronous priority queue, keyed (time, particle ID,
// kind) for fully deterministic pop order. Removal never searches the
// heap: the owning particle's generation is bumped instead, and stale
// entries are skipped lazily on the way out.
type eventQueue struct {
	h eventHeap
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

// schedule pushes an opportunity stamped with the particle's current
// generation.
func (q *eventQueue) schedule(at float64, id ID, kind asyncKind, gen uint64) {
	heap.Push(&q.h, queuedEvent{at: at, id: id, kind: kind, gen: gen})
}

// next pops the earliest live event. Stale generations are discarded.
func (q *eventQueue) next(gens map[ID]uint64) (queuedEvent, bool) {
	for q.h.Len() > 0 {
		ev := heap.Pop(&q.h).(queuedEvent)
		if ev.gen == gens[ev.id] {
			return ev, true
		}
	}
	return queuedEvent{}, false
}

// hasEventBefore reports whether a live event is due at or before limit.
// Stale heap tops are pruned on the way.
func (q *eventQueue) hasEventBefore(gens map[ID]uint64, limit float64) bool {
	q.prune(gens)
	return q.h.Len() > 0 && q.h[0].at <= limit
}

// empty reports whether no live events remain.
func (q *eventQueue) empty(gens map[ID]uint64) bool {
	q.prune(gens)
	return q.h.Len() == 0
}

// prune pops stale events off the top until a live one (or nothing)
// remains.
func (q *eventQueue) prune(gens map[ID]uint64) {
	for q.h.Len() > 0 && q.h[0].gen != gens[q.h[0].id] {
		heap.Pop(&q.h)
	}
}

// pending returns the live events sorted by pop order. Used when
// checkpointing.
func (q *eventQueue) pending(gens map[ID]uint64) []queuedEvent {
	out := make([]queuedEvent, 0, q.h.Len())
	for _, ev := range q.h {
		if ev.gen == gens[ev.id] {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b queuedEvent) int {
		if a.at != b.at {
			if a.at < b.at {
				return -1
			}
			return 1
		}
		if a.id != b.id {
			if a.id < b.id {
				return -1
			}
			return 1
		}
		return int(a.kind) - int(b.kind)
	})
	return out
}

// eventHeap implements heap.Interface over queuedEvents.
type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	if h[i].id != h[j].id {
		return h[i].id < h[j].id
	}
	return h[i].kind < h[j].kind
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}
