package bridge

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
)

// Registry tracks in-flight waiters by correlation id. Deadlines are kept in
// a min-heap so each expiry sweep pops only what is due instead of scanning
// every waiter.
//
// Resolution removes the waiter from the map under the lock and sends the
// outcome afterwards; the outcome channel is buffered, so exactly one
// resolver wins and never blocks.
type Registry struct {
	mu        sync.Mutex
	waiters   map[string]*Waiter
	deadlines deadlineHeap
}

// NewRegistry creates an empty waiter registry.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string]*Waiter)}
}

type deadlineEntry struct {
	at time.Time
	id string
}

// deadlineHeap orders waiter ids by deadline. Entries are not removed when a
// waiter resolves early; ExpireDue skips ids no longer in the map.
type deadlineHeap []deadlineEntry

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deadlineHeap) Push(x any) {
	*h = append(*h, x.(deadlineEntry))
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Insert registers a waiter. A correlation id may only be in flight once.
func (r *Registry) Insert(w *Waiter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.waiters[w.CorrelationID]; exists {
		return fmt.Errorf("%w: %s", errspkg.ErrDuplicateCorrelationID, w.CorrelationID)
	}
	r.waiters[w.CorrelationID] = w
	heap.Push(&r.deadlines, deadlineEntry{at: w.Deadline, id: w.CorrelationID})
	return nil
}

// Len returns the number of in-flight waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// take removes and returns the waiter, or nil when it already resolved.
func (r *Registry) take(id string) *Waiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.waiters[id]
	if w != nil {
		delete(r.waiters, id)
	}
	return w
}

// Complete resolves a waiter with a response payload. It reports false when
// no waiter holds the id: already resolved, expired, or owned by another
// instance.
func (r *Registry) Complete(id string, payload []byte) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	w.done <- Outcome{Kind: OutcomeOK, Payload: payload}
	return true
}

// Fail resolves a waiter with a failure reason.
func (r *Registry) Fail(id, reason string) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	w.done <- Outcome{Kind: OutcomeFailed, Reason: reason}
	return true
}

// Cancel resolves a waiter as abandoned by its caller.
func (r *Registry) Cancel(id string) bool {
	w := r.take(id)
	if w == nil {
		return false
	}
	w.done <- Outcome{Kind: OutcomeCancelled}
	return true
}

// FailAll resolves every in-flight waiter with the given reason and returns
// how many were failed.
func (r *Registry) FailAll(reason string) int {
	r.mu.Lock()
	taken := make([]*Waiter, 0, len(r.waiters))
	for id, w := range r.waiters {
		delete(r.waiters, id)
		taken = append(taken, w)
	}
	r.deadlines = r.deadlines[:0]
	r.mu.Unlock()

	for _, w := range taken {
		w.done <- Outcome{Kind: OutcomeFailed, Reason: reason}
	}
	return len(taken)
}

// ExpireDue resolves every waiter whose deadline is at or before now and
// returns them.
func (r *Registry) ExpireDue(now time.Time) []*Waiter {
	r.mu.Lock()
	var due []*Waiter
	for r.deadlines.Len() > 0 {
		if r.deadlines[0].at.After(now) {
			break
		}
		entry := heap.Pop(&r.deadlines).(deadlineEntry)
		if w, live := r.waiters[entry.id]; live {
			delete(r.waiters, entry.id)
			due = append(due, w)
		}
	}
	r.mu.Unlock()

	for _, w := range due {
		w.done <- Outcome{Kind: OutcomeTimeout}
	}
	return due
}
