package landing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedWriter is a backend stub with per-key failure scripting.
type scriptedWriter struct {
	mu         sync.Mutex
	batches    [][]Key
	writes     map[Key]int
	failPerKey map[Key]int // fail this key N more times (per-item result)
	batchErrs  int         // fail the next N whole batches (backend unavailable)
}

func newScriptedWriter() *scriptedWriter {
	return &scriptedWriter{
		writes:     make(map[Key]int),
		failPerKey: make(map[Key]int),
	}
}

func (w *scriptedWriter) WriteBatch(ctx context.Context, tasks []*Task) ([]Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys := make([]Key, len(tasks))
	for i, task := range tasks {
		keys[i] = task.Key
	}
	w.batches = append(w.batches, keys)

	if w.batchErrs > 0 {
		w.batchErrs--
		return nil, errors.New("backend unavailable")
	}

	results := make([]Result, len(tasks))
	for i, task := range tasks {
		results[i].Key = task.Key
		w.writes[task.Key]++
		if w.failPerKey[task.Key] > 0 {
			w.failPerKey[task.Key]--
			results[i].Err = errors.New("transient write error")
		}
	}
	return results, nil
}

func (w *scriptedWriter) writeCount(key Key) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes[key]
}

func newTestEngine(t *testing.T, writer Writer) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{Writer: writer})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEngineFlushesInBatches(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	// normal preset drains 200 per tick
	for i := 0; i < 250; i++ {
		e.Enqueue(testKey(i), i)
	}

	e.tick(ctx)
	c := e.Counters()
	if c.Success != 200 || c.Pending != 50 {
		t.Errorf("Expected success=200 pending=50 after first tick, got success=%d pending=%d",
			c.Success, c.Pending)
	}

	e.tick(ctx)
	c = e.Counters()
	if c.Success != 250 || c.Pending != 0 {
		t.Errorf("Expected success=250 pending=0 after second tick, got success=%d pending=%d",
			c.Success, c.Pending)
	}
}

func TestEngineRetriesThenSucceeds(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := testKey(i)
		writer.failPerKey[key] = 2 // fail twice, succeed on attempt 3
		e.Enqueue(key, i)
	}

	for i := 0; i < 3; i++ {
		e.tick(ctx)
	}

	c := e.Counters()
	if c.Success != 5 {
		t.Errorf("Expected all 5 tasks to succeed, got %d", c.Success)
	}
	if c.Failed != 0 {
		t.Errorf("Expected no dropped tasks, got %d", c.Failed)
	}
	if c.Retried != 10 {
		t.Errorf("Expected retried = 2 x batch = 10, got %d", c.Retried)
	}
}

func TestEngineDropsPastRetryCeiling(t *testing.T) {
	writer := newScriptedWriter()
	var dropped []*Task
	e, err := NewEngine(EngineConfig{
		Writer:       writer,
		RetryCeiling: 3,
		OnDrop: func(task *Task, reason error) {
			dropped = append(dropped, task)
		},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ctx := context.Background()

	key := testKey(1)
	writer.failPerKey[key] = 100
	e.Enqueue(key, "doomed")

	for i := 0; i < 6; i++ {
		e.tick(ctx)
	}

	c := e.Counters()
	if c.Failed != 1 {
		t.Errorf("Expected failedCount=1, got %d", c.Failed)
	}
	if c.Pending != 0 {
		t.Errorf("Expected the dropped task gone from the queue, got pending=%d", c.Pending)
	}
	// initial write plus 3 retries, then never again
	if n := writer.writeCount(key); n != 4 {
		t.Errorf("Expected exactly 4 write attempts, got %d", n)
	}
	if len(dropped) != 1 || dropped[0].Key != key {
		t.Errorf("Expected OnDrop called once for %v, got %v", key, dropped)
	}
}

func TestEngineBackendUnavailable(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	writer.batchErrs = 1
	for i := 0; i < 10; i++ {
		e.Enqueue(testKey(i), i)
	}

	e.tick(ctx)
	c := e.Counters()
	if c.Retried != 10 || c.Pending != 10 {
		t.Errorf("Expected whole batch requeued, got retried=%d pending=%d", c.Retried, c.Pending)
	}

	e.tick(ctx)
	c = e.Counters()
	if c.Success != 10 || c.Pending != 0 {
		t.Errorf("Expected recovery on next tick, got success=%d pending=%d", c.Success, c.Pending)
	}
}

func TestEngineStaleRetrySuperseded(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	key := testKey(1)
	writer.failPerKey[key] = 1
	e.Enqueue(key, "stale")

	// drain happens, write fails; before the requeue would land, a newer
	// snapshot is already pending again
	batch := e.queue.Drain(200)
	e.Enqueue(key, "fresh")
	e.writeBatch(ctx, batch)

	c := e.Counters()
	if c.Retried != 0 {
		t.Errorf("Expected stale retry to be dropped, got retried=%d", c.Retried)
	}
	if c.Pending != 1 {
		t.Errorf("Expected the fresh snapshot pending, got %d", c.Pending)
	}

	e.tick(ctx)
	if got := writer.writeCount(key); got != 2 {
		t.Errorf("Expected 2 writes total for the key, got %d", got)
	}
}

func TestEngineSwitchToActiveModeIsNoOp(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	before := e.EffectiveConfig()
	counters := e.Counters()

	if err := e.SwitchToMode(ModeNormal); err != nil {
		t.Fatalf("SwitchToMode failed: %v", err)
	}

	if e.EffectiveConfig() != before {
		t.Error("Expected effectiveConfig unchanged on no-op switch")
	}
	if e.Counters() != counters {
		t.Error("Expected counters unchanged on no-op switch")
	}
}

func TestEngineManualModeSwitch(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	if err := e.SwitchToMode(ModeExtreme); err != nil {
		t.Fatalf("SwitchToMode failed: %v", err)
	}
	if e.ActiveMode() != ModeExtreme {
		t.Errorf("Expected extreme active, got %s", e.ActiveMode())
	}

	extreme, _ := e.Presets().Get(ModeExtreme)
	if e.EffectiveConfig() != extreme {
		t.Error("Expected effective config to match the extreme preset")
	}
}

func TestEngineApplyCustomConfig(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	custom := ModeConfig{
		BatchSize:        42,
		Interval:         77 * time.Millisecond,
		AdaptiveEnabled:  false,
		BacklogThreshold: 10,
		IdleThreshold:    1,
	}
	if err := e.ApplyCustomConfig(custom); err != nil {
		t.Fatalf("ApplyCustomConfig failed: %v", err)
	}

	if e.ActiveMode() != ModeNormal {
		t.Errorf("Expected mode label unchanged, got %s", e.ActiveMode())
	}
	if e.EffectiveConfig() != custom {
		t.Error("Expected custom config effective")
	}
}

func TestEngineRejectsInvalidCustomConfig(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	before := e.EffectiveConfig()
	err := e.ApplyCustomConfig(ModeConfig{BatchSize: 0, Interval: time.Second})
	if err == nil {
		t.Fatal("Expected validation error for zero batch size")
	}
	if e.EffectiveConfig() != before {
		t.Error("Expected engine state unchanged after rejected config")
	}
}

func TestEnginePresetEditNeedsReapply(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	cfg, _ := e.Presets().Get(ModeNormal)
	cfg.BatchSize = 123
	if err := e.Presets().Update(ModeNormal, cfg); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if e.EffectiveConfig().BatchSize == 123 {
		t.Error("Expected preset edit not to apply until reapply")
	}

	if err := e.Reapply(); err != nil {
		t.Fatalf("Reapply failed: %v", err)
	}
	if e.EffectiveConfig().BatchSize != 123 {
		t.Errorf("Expected batch size 123 after reapply, got %d", e.EffectiveConfig().BatchSize)
	}
}

func TestEngineAdaptiveEscalatesOneStep(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	// normal preset: batch 200, backlog threshold 1000, window 3.
	// depth stays above threshold for three consecutive ticks.
	for i := 0; i < 3000; i++ {
		e.Enqueue(testKey(i), i)
	}

	e.tick(ctx)
	e.tick(ctx)
	if e.ActiveMode() != ModeNormal {
		t.Fatalf("Expected no escalation before the window, got %s", e.ActiveMode())
	}

	e.tick(ctx)
	if e.ActiveMode() != ModePeak {
		t.Errorf("Expected exactly one escalation step to peak, got %s", e.ActiveMode())
	}
}

func TestEngineAdaptiveDeEscalatesOneStep(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())
	ctx := context.Background()

	// empty queue: depth 0 is below the normal idle threshold
	e.tick(ctx)
	e.tick(ctx)
	if e.ActiveMode() != ModeNormal {
		t.Fatalf("Expected no de-escalation before the window, got %s", e.ActiveMode())
	}

	e.tick(ctx)
	if e.ActiveMode() != ModeIdle {
		t.Errorf("Expected exactly one de-escalation step to idle, got %s", e.ActiveMode())
	}
}

func TestEngineAdaptiveDisabled(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())
	ctx := context.Background()

	cfg := e.EffectiveConfig()
	cfg.AdaptiveEnabled = false
	if err := e.ApplyCustomConfig(cfg); err != nil {
		t.Fatalf("ApplyCustomConfig failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		e.tick(ctx)
	}
	if e.ActiveMode() != ModeNormal {
		t.Errorf("Expected mode pinned with adaptive disabled, got %s", e.ActiveMode())
	}
}

func TestEngineNeedAlert(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	for i := 0; i < 100; i++ {
		e.Enqueue(testKey(i), i)
	}

	if e.NeedAlert(100) {
		t.Error("Expected no alert at exactly the threshold")
	}
	if !e.NeedAlert(99) {
		t.Error("Expected alert just below the threshold")
	}

	e.Enqueue(testKey(100), 100)
	if !e.NeedAlert(100) {
		t.Error("Expected alert above the threshold")
	}
}

func TestEngineStatusSummary(t *testing.T) {
	e := newTestEngine(t, newScriptedWriter())

	summary := e.StatusSummary()
	for _, want := range []string{"mode=normal", "pending=0", "success=0", "batch=200"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Expected %q in status summary %q", want, summary)
		}
	}
}

func TestEngineFinalDrain(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)

	for i := 0; i < 450; i++ {
		e.Enqueue(testKey(i), i)
	}

	e.finalDrain()

	c := e.Counters()
	if c.Success != 450 || c.Pending != 0 {
		t.Errorf("Expected full final drain, got success=%d pending=%d", c.Success, c.Pending)
	}
}

func TestEngineFinalDrainDoesNotRetry(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)

	key := testKey(1)
	writer.failPerKey[key] = 100
	e.Enqueue(key, "unlucky")
	e.Enqueue(testKey(2), "fine")

	e.finalDrain()

	c := e.Counters()
	if c.Success != 1 || c.Failed != 1 || c.Pending != 0 {
		t.Errorf("Expected success=1 failed=1 pending=0, got %+v", c)
	}
	if n := writer.writeCount(key); n != 1 {
		t.Errorf("Expected single attempt during final drain, got %d", n)
	}
}

func TestEngineStartStop(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)

	if err := e.ApplyCustomConfig(ModeConfig{
		BatchSize:        200,
		Interval:         25 * time.Millisecond,
		AdaptiveEnabled:  false,
		BacklogThreshold: 1000,
		IdleThreshold:    50,
	}); err != nil {
		t.Fatalf("ApplyCustomConfig failed: %v", err)
	}

	for i := 0; i < 250; i++ {
		e.Enqueue(testKey(i), i)
	}

	e.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	e.Stop()

	c := e.Counters()
	if c.Success != 250 || c.Pending != 0 {
		t.Errorf("Expected all writes flushed by the loop, got success=%d pending=%d",
			c.Success, c.Pending)
	}
}

func TestEngineConcurrentProducers(t *testing.T) {
	writer := newScriptedWriter()
	e := newTestEngine(t, writer)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := Key{Kind: "player", Id: fmt.Sprintf("p%d-%d", p, i%50)}
				e.Enqueue(key, i)
			}
		}(p)
	}
	wg.Wait()

	// 8 producers x 50 live keys, coalesced
	if got := e.queue.Size(); got != 400 {
		t.Errorf("Expected 400 pending after coalescing, got %d", got)
	}

	for e.queue.Size() > 0 {
		e.tick(ctx)
	}
	if c := e.Counters(); c.Success != 400 || c.Failed != 0 {
		t.Errorf("Expected 400 successes, got %+v", c)
	}
}
