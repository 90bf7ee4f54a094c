package landing

import (
	"fmt"
	"testing"

	"moorhen/stats_collector"
)

func testKey(id int) Key {
	return Key{Kind: "player", Id: fmt.Sprintf("p%d", id)}
}

func TestQueueEnqueue(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	q.Enqueue(testKey(1), "snapshot-1")

	if q.Size() != 1 {
		t.Errorf("Expected queue size 1, got %d", q.Size())
	}
}

func TestQueueDistinctKeys(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	for i := 0; i < 100; i++ {
		q.Enqueue(testKey(i), i)
	}

	if q.Size() != 100 {
		t.Errorf("Expected queue size 100 for distinct keys, got %d", q.Size())
	}
}

func TestQueueCoalescing(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	for i := 0; i < 10; i++ {
		q.Enqueue(testKey(1), fmt.Sprintf("snapshot-%d", i))
	}

	if q.Size() != 1 {
		t.Errorf("Expected queue size 1 after coalescing, got %d", q.Size())
	}

	batch := q.Drain(10)
	if len(batch) != 1 {
		t.Fatalf("Expected 1 task drained, got %d", len(batch))
	}
	if batch[0].Snapshot != "snapshot-9" {
		t.Errorf("Expected latest snapshot to win, got %v", batch[0].Snapshot)
	}
}

func TestQueueCoalescingKeepsPosition(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	q.Enqueue(testKey(1), "a")
	q.Enqueue(testKey(2), "b")
	// updating key 1 must not move it behind key 2
	q.Enqueue(testKey(1), "a2")

	batch := q.Drain(2)
	if len(batch) != 2 {
		t.Fatalf("Expected 2 tasks drained, got %d", len(batch))
	}
	if batch[0].Key != testKey(1) || batch[1].Key != testKey(2) {
		t.Errorf("Expected enqueue order preserved, got %v then %v", batch[0].Key, batch[1].Key)
	}
	if batch[0].Snapshot != "a2" {
		t.Errorf("Expected updated snapshot for key 1, got %v", batch[0].Snapshot)
	}
}

func TestQueueDrainRespectsMax(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	for i := 0; i < 250; i++ {
		q.Enqueue(testKey(i), i)
	}

	batch := q.Drain(200)
	if len(batch) != 200 {
		t.Errorf("Expected 200 tasks drained, got %d", len(batch))
	}
	if q.Size() != 50 {
		t.Errorf("Expected 50 tasks remaining, got %d", q.Size())
	}

	// drained oldest first
	if batch[0].Key != testKey(0) || batch[199].Key != testKey(199) {
		t.Errorf("Expected FIFO drain order, got %v .. %v", batch[0].Key, batch[199].Key)
	}

	rest := q.Drain(200)
	if len(rest) != 50 {
		t.Errorf("Expected 50 tasks on second drain, got %d", len(rest))
	}
	if q.Size() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Size())
	}
}

func TestQueueRequeueGoesFirst(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	q.Enqueue(testKey(1), "failed")
	failed := q.Drain(1)[0]
	failed.Attempt = 1

	q.Enqueue(testKey(2), "newer")

	if !q.Requeue(failed) {
		t.Fatal("Expected requeue to succeed with no competing snapshot")
	}

	batch := q.Drain(2)
	if batch[0].Key != testKey(1) {
		t.Errorf("Expected requeued task first, got %v", batch[0].Key)
	}
	if batch[0].Attempt != 1 {
		t.Errorf("Expected attempt counter preserved, got %d", batch[0].Attempt)
	}
}

func TestQueueRequeueDroppedWhenSuperseded(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	q.Enqueue(testKey(1), "stale")
	stale := q.Drain(1)[0]

	// a newer snapshot arrives while the stale one is in flight
	q.Enqueue(testKey(1), "fresh")

	if q.Requeue(stale) {
		t.Error("Expected requeue to be dropped when a newer snapshot is pending")
	}
	if q.Size() != 1 {
		t.Errorf("Expected queue size 1, got %d", q.Size())
	}

	batch := q.Drain(1)
	if batch[0].Snapshot != "fresh" {
		t.Errorf("Expected the newer snapshot to win, got %v", batch[0].Snapshot)
	}
}

func TestQueueDrainEmpty(t *testing.T) {
	q := NewQueue(stats_collector.NewNoopStatsCollector())

	if batch := q.Drain(100); batch != nil {
		t.Errorf("Expected nil batch from empty queue, got %d tasks", len(batch))
	}
	if batch := q.Drain(0); batch != nil {
		t.Errorf("Expected nil batch for max 0, got %d tasks", len(batch))
	}
}
