// Package queue implements the bounded dual-priority queue between the
// indexer's file reader and its bulk flusher.
package queue

import (
	"context"
	"time"

	"github.com/jonesrussell/north-search/internal/domain"
	"github.com/jonesrussell/north-search/internal/metrics"
)

// fullFraction is the depth at which a lane counts as full for
// backpressure purposes.
const fullFraction = 0.9

// Queue holds pending index items in two bounded lanes. The consumer
// always drains the high lane before touching the standard lane, so fresh
// work is never starved by a backlog drain.
type Queue struct {
	high     chan domain.QueueItem
	standard chan domain.QueueItem
}

// New creates a queue with the given per-lane capacities.
func New(highCapacity, standardCapacity int) *Queue {
	return &Queue{
		high:     make(chan domain.QueueItem, highCapacity),
		standard: make(chan domain.QueueItem, standardCapacity),
	}
}

// Put enqueues an item into its priority lane, blocking up to timeout when
// the lane is full. Returns false on timeout; the caller owns what happens
// to the item then.
func (q *Queue) Put(item domain.QueueItem, timeout time.Duration) bool {
	lane := q.lane(item.Priority)

	select {
	case lane <- item:
		q.observeDepth()
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case lane <- item:
		q.observeDepth()
		return true
	case <-timer.C:
		return false
	}
}

// Get returns the next item, high lane first. Blocks until an item is
// available or the context is done.
func (q *Queue) Get(ctx context.Context) (domain.QueueItem, bool) {
	for {
		select {
		case item := <-q.high:
			q.observeDepth()
			return item, true
		default:
		}

		select {
		case item := <-q.high:
			q.observeDepth()
			return item, true
		case item := <-q.standard:
			q.observeDepth()
			return item, true
		case <-ctx.Done():
			return domain.QueueItem{}, false
		}
	}
}

// TryGet returns the next item without blocking, high lane first.
func (q *Queue) TryGet() (domain.QueueItem, bool) {
	select {
	case item := <-q.high:
		q.observeDepth()
		return item, true
	default:
	}
	select {
	case item := <-q.standard:
		q.observeDepth()
		return item, true
	default:
		return domain.QueueItem{}, false
	}
}

// Sizes reports the current depth of each lane.
func (q *Queue) Sizes() (high, standard int) {
	return len(q.high), len(q.standard)
}

// IsFull reports whether either lane is at ninety percent of capacity.
// The file reader uses this to stop pulling new files before Put starts
// timing out.
func (q *Queue) IsFull() bool {
	if laneFull(len(q.high), cap(q.high)) {
		return true
	}
	return laneFull(len(q.standard), cap(q.standard))
}

func laneFull(depth, capacity int) bool {
	if capacity == 0 {
		return true
	}
	return float64(depth) >= float64(capacity)*fullFraction
}

func (q *Queue) lane(p domain.Priority) chan domain.QueueItem {
	if p == domain.PriorityHigh {
		return q.high
	}
	return q.standard
}

func (q *Queue) observeDepth() {
	metrics.QueueDepth.WithLabelValues(domain.PriorityHigh.String()).Set(float64(len(q.high)))
	metrics.QueueDepth.WithLabelValues(domain.PriorityStandard.String()).Set(float64(len(q.standard)))
}
