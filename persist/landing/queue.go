package landing

import (
	"container/list"
	"sync"
	"time"

	"moorhen/stats_collector"
)

// Queue is the coalescing ingress buffer. At most one task is pending per
// key: a newer enqueue for the same key replaces the snapshot in place
// (last-write-wins) without moving the task or resetting its attempt
// counter. Queue size is therefore bounded by live-entity count, not
// mutation count.
type Queue struct {
	mu    sync.Mutex
	order *list.List            // *Task in enqueue order, oldest at front
	index map[Key]*list.Element // key -> element for squashing
	stats stats_collector.StatsCollector
}

// NewQueue creates an empty coalescing queue.
func NewQueue(stats stats_collector.StatsCollector) *Queue {
	return &Queue{
		order: list.New(),
		index: make(map[Key]*list.Element),
		stats: stats,
	}
}

// Enqueue adds or updates the pending write for key. Non-blocking, O(1).
// Safe for unbounded concurrent callers.
func (q *Queue) Enqueue(key Key, snapshot any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if el, ok := q.index[key]; ok {
		el.Value.(*Task).Snapshot = snapshot
		q.stats.IncLandingSquashed(key.Kind)
	} else {
		q.index[key] = q.order.PushBack(&Task{
			Key:        key,
			Snapshot:   snapshot,
			EnqueuedAt: time.Now(),
		})
	}

	q.stats.SetLandingQueueDepth(float64(len(q.index)))
}

// Drain atomically removes and returns up to max tasks in enqueue order,
// oldest pending key first. Used exclusively by the flush loop.
func (q *Queue) Drain(max int) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 || q.order.Len() == 0 {
		return nil
	}

	n := q.order.Len()
	if n > max {
		n = max
	}

	out := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		el := q.order.Front()
		task := el.Value.(*Task)
		q.order.Remove(el)
		delete(q.index, task.Key)
		out = append(out, task)
	}

	q.stats.SetLandingQueueDepth(float64(len(q.index)))
	return out
}

// Requeue reinserts a failed task at the front of the queue so it is
// retried before newer work. If a newer snapshot for the same key was
// enqueued while the task was in flight, the requeue is dropped and the
// newer snapshot wins; returns false in that case.
func (q *Queue) Requeue(task *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[task.Key]; ok {
		return false
	}

	q.index[task.Key] = q.order.PushFront(task)
	q.stats.SetLandingQueueDepth(float64(len(q.index)))
	return true
}

// Size returns the current pending count without draining.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}
