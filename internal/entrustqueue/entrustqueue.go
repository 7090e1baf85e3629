// Package entrustqueue implements the ordered, blocking queue of open
// orders that the market engine drains one at a time. It is keyed by
// entrust-id so a cancel can look up (and remove) its target directly
// instead of scanning, while still preserving FIFO delivery order for the
// matchmaking loop.
package entrustqueue

import (
	"container/list"
	"sync"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// EventKey is the reserved key under which sentinel control values (such
// as a shutdown signal) are enqueued instead of an order.
const EventKey = "event"

// CancelSuffix is appended to an entrust-id to key its cancel order, so a
// cancel never collides with the order it targets while both are queued.
const CancelSuffix = "_cancel"

type entry struct {
	key   string
	order *domain.Order
}

// Queue is an ordered map from key to *domain.Order with a blocking Take.
type Queue struct {
	mu      sync.Mutex
	notify  chan struct{}
	order   *list.List
	index   map[string]*list.Element
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		order:  list.New(),
		index:  make(map[string]*list.Element),
	}
}

// Put inserts order at the tail keyed by key. If key is already present,
// the existing entry is replaced in place, preserving its queue position
// (this matters for a cancel order posted under "<id>_cancel" and for
// sentinel events posted under EventKey).
func (q *Queue) Put(key string, order *domain.Order) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if el, ok := q.index[key]; ok {
		el.Value.(*entry).order = order
	} else {
		el := q.order.PushBack(&entry{key: key, order: order})
		q.index[key] = el
	}
	q.wakeLocked()
}

// Take blocks until the queue is non-empty, then removes and returns the
// head entry's order and key.
func (q *Queue) Take() (string, *domain.Order) {
	for {
		q.mu.Lock()
		if front := q.order.Front(); front != nil {
			e := front.Value.(*entry)
			q.order.Remove(front)
			delete(q.index, e.key)
			q.mu.Unlock()
			return e.key, e.order
		}
		ch := q.notify
		q.mu.Unlock()
		<-ch
	}
}

// Delete removes the entry keyed by key, if present, reporting whether it
// was found. Used by cancel handling to pull a still-open target order out
// of the queue before it is matched.
func (q *Queue) Delete(key string) (*domain.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	el, ok := q.index[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	q.order.Remove(el)
	delete(q.index, key)
	return e.order, true
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// Snapshot returns every order currently queued, in queue order, without
// removing them. Used on shutdown to drain what Take never got to.
func (q *Queue) Snapshot() []*domain.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*domain.Order, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).order)
	}
	return out
}

// wakeLocked must be called with q.mu held. It wakes every blocked Take by
// closing and replacing the notify channel; only one of them will find a
// non-empty queue and the rest loop back to waiting.
func (q *Queue) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{}, 1)
}
