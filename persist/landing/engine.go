package landing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"moorhen/stats_collector"
)

const (
	defaultRetryCeiling     = 3
	defaultHysteresisWindow = 3
	statusLogInterval       = 30 * time.Second
)

// effective is the config snapshot driving the flush loop. It is installed
// as a single atomic pointer swap, never mutated field by field, so a tick
// always observes a complete, internally-consistent configuration.
type effective struct {
	Mode   Mode
	Config ModeConfig
}

// EngineConfig configures a landing engine.
type EngineConfig struct {
	Registry *Registry // nil for built-in presets
	Writer   Writer
	Stats    stats_collector.StatsCollector // nil for noop

	RetryCeiling     int // failed-write retries before a task is dropped, default 3
	HysteresisWindow int // consecutive ticks before a mode step, default 3

	RateLimit     int // backend writes per second, 0 = unlimited
	BurstCapacity int // token bucket burst capacity

	StartupDelay time.Duration // warmup before the first flush

	// OnDrop is called when a task exceeds the retry ceiling and is
	// dropped for manual reconciliation. Optional.
	OnDrop func(task *Task, reason error)
}

// Engine is the write-behind persistence pipeline: a coalescing queue, a
// single flush loop batching writes to the backend, and an adaptive
// controller retuning batch size and interval via named operating modes.
// One instance runs per server.
type Engine struct {
	queue      *Queue
	writer     Writer
	registry   *Registry
	controller *Controller
	limiter    *TokenBucket
	stats      stats_collector.StatsCollector

	effective atomic.Pointer[effective]

	success atomic.Int64
	failed  atomic.Int64
	retried atomic.Int64

	retryCeiling int
	startupDelay time.Duration
	onDrop       func(*Task, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine with Normal active. Start must be called
// before any flushing happens; Enqueue is usable immediately.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Writer == nil {
		return nil, errors.New("landing engine requires a backend writer")
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Stats == nil {
		cfg.Stats = stats_collector.NewNoopStatsCollector()
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = defaultRetryCeiling
	}
	if cfg.HysteresisWindow <= 0 {
		cfg.HysteresisWindow = defaultHysteresisWindow
	}

	normal, err := cfg.Registry.Get(ModeNormal)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		queue:        NewQueue(cfg.Stats),
		writer:       cfg.Writer,
		registry:     cfg.Registry,
		controller:   NewController(cfg.HysteresisWindow),
		limiter:      NewTokenBucket(cfg.RateLimit, cfg.BurstCapacity),
		stats:        cfg.Stats,
		retryCeiling: cfg.RetryCeiling,
		startupDelay: cfg.StartupDelay,
		onDrop:       cfg.OnDrop,
	}
	e.effective.Store(&effective{Mode: ModeNormal, Config: normal})
	e.stats.SetLandingMode(float64(ModeNormal))
	return e, nil
}

// Enqueue buffers the latest snapshot for key. Never blocks and never
// returns an error to producers; all failure signalling downstream is via
// counters, logs and the alert hook.
func (e *Engine) Enqueue(key Key, snapshot any) {
	e.queue.Enqueue(key, snapshot)
}

// Start launches the flush loop. The engine stops when ctx is cancelled or
// Stop is called, after one final best-effort drain.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run(ctx)

	e.wg.Add(1)
	go e.statusLoop(ctx)

	eff := e.effective.Load()
	log.Infof("Landing engine started: mode=%s batch=%d interval=%s retry_ceiling=%d",
		eff.Mode, eff.Config.BatchSize, eff.Config.Interval, e.retryCeiling)
}

// Stop cancels the flush loop, waits for the final drain and logs final
// counters. Tasks that still fail during the final drain are lost; this is
// surfaced in the counters and logs, never hidden.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	c := e.Counters()
	log.Infof("Landing engine stopped: success=%d failed=%d retried=%d unwritten=%d",
		c.Success, c.Failed, c.Retried, c.Pending)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	if e.startupDelay > 0 {
		select {
		case <-ctx.Done():
			e.finalDrain()
			return
		case <-time.After(e.startupDelay):
			log.Infof("Landing warmup complete, %d queued writes pending", e.queue.Size())
		}
	}

	timer := time.NewTimer(e.effective.Load().Config.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.finalDrain()
			return
		case <-timer.C:
			e.tick(ctx)
			// interval may have changed with the mode
			timer.Reset(e.effective.Load().Config.Interval)
		}
	}
}

// tick drains one batch, writes it, and feeds the resulting queue depth to
// the adaptive controller. The effective config is loaded once per tick so
// a concurrent config change never applies mid-batch.
func (e *Engine) tick(ctx context.Context) {
	eff := e.effective.Load()

	batch := e.queue.Drain(eff.Config.BatchSize)
	if len(batch) > 0 {
		e.writeBatch(ctx, batch)
	}

	depth := e.queue.Size()
	e.stats.SetLandingQueueDepth(float64(depth))

	if !eff.Config.AdaptiveEnabled {
		return
	}

	switch e.controller.Observe(depth, eff.Config) {
	case StepUp:
		if next, ok := eff.Mode.Next(); ok {
			log.Infof("Landing backlog sustained at %d (threshold %d), escalating %s -> %s",
				depth, eff.Config.BacklogThreshold, eff.Mode, next)
			if err := e.SwitchToMode(next); err != nil {
				log.Errorf("Landing escalation to %s failed: %v", next, err)
			}
		}
	case StepDown:
		if prev, ok := eff.Mode.Prev(); ok {
			log.Infof("Landing queue idle at %d (threshold %d), de-escalating %s -> %s",
				depth, eff.Config.IdleThreshold, eff.Mode, prev)
			if err := e.SwitchToMode(prev); err != nil {
				log.Errorf("Landing de-escalation to %s failed: %v", prev, err)
			}
		}
	}
}

func (e *Engine) writeBatch(ctx context.Context, batch []*Task) {
	e.limiter.WaitAcquire(len(batch))

	start := time.Now()
	results, err := e.writer.WriteBatch(ctx, batch)
	batchTime := time.Since(start).Seconds()

	if err != nil {
		// backend unreachable: every task in the batch failed
		e.stats.IncLandingBatchErrors()
		log.Errorf("Landing batch write failed (%d tasks): %v", len(batch), err)
		for _, task := range batch {
			e.handleFailure(task, err)
		}
		return
	}

	now := time.Now()
	for i, task := range batch {
		var taskErr error
		if i < len(results) {
			taskErr = results[i].Err
		}
		if taskErr == nil {
			e.success.Add(1)
			e.stats.IncLandingWrites(task.Key.Kind)
			e.stats.ObserveLandingLatency(now.Sub(task.EnqueuedAt).Seconds())
		} else {
			e.handleFailure(task, taskErr)
		}
	}

	e.stats.IncLandingBatches()
	e.stats.ObserveLandingBatchSize(float64(len(batch)))
	e.stats.ObserveLandingBatchTime(batchTime)
}

// handleFailure retries the task up to the ceiling, then drops it. A drop
// is counted, logged and handed to OnDrop for manual reconciliation; it is
// never silently retried forever.
func (e *Engine) handleFailure(task *Task, reason error) {
	task.Attempt++

	if task.Attempt <= e.retryCeiling {
		if e.queue.Requeue(task) {
			e.retried.Add(1)
			e.stats.IncLandingRetries(task.Key.Kind)
		} else {
			// a newer snapshot for this key is already pending;
			// retrying stale data would be an out-of-order write
			log.Debugf("Landing: stale retry for %s superseded by newer snapshot", task.Key)
		}
		return
	}

	e.failed.Add(1)
	e.stats.IncLandingDropped(task.Key.Kind)
	log.Errorf("Landing: dropping %s after %d attempts: %v", task.Key, task.Attempt, reason)
	if e.onDrop != nil {
		e.onDrop(task, reason)
	}
}

// finalDrain writes whatever is queued at shutdown, one batch at a time,
// without retrying failures.
func (e *Engine) finalDrain() {
	pending := e.queue.Size()
	if pending == 0 {
		return
	}
	log.Infof("Landing: final drain of %d pending writes", pending)

	eff := e.effective.Load()
	ctx := context.Background()

	for {
		batch := e.queue.Drain(eff.Config.BatchSize)
		if len(batch) == 0 {
			break
		}

		results, err := e.writer.WriteBatch(ctx, batch)
		if err != nil {
			e.failed.Add(int64(len(batch)))
			log.Errorf("Landing: final drain batch lost (%d tasks): %v", len(batch), err)
			continue
		}
		for i, task := range batch {
			var taskErr error
			if i < len(results) {
				taskErr = results[i].Err
			}
			if taskErr == nil {
				e.success.Add(1)
				e.stats.IncLandingWrites(task.Key.Kind)
			} else {
				e.failed.Add(1)
				log.Errorf("Landing: final drain lost %s: %v", task.Key, taskErr)
			}
		}
	}
}

func (e *Engine) statusLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Infof("Landing: %s", e.StatusSummary())
		}
	}
}

// SwitchToMode applies the stored preset for mode and makes it active.
// Takes effect on the next tick. Switching to the already-active mode is a
// no-op logged at debug level.
func (e *Engine) SwitchToMode(mode Mode) error {
	cur := e.effective.Load()
	if cur.Mode == mode {
		log.Debugf("Landing: mode %s already active, switch ignored", mode)
		return nil
	}

	cfg, err := e.registry.Get(mode)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.effective.Store(&effective{Mode: mode, Config: cfg})
	e.controller.Reset()
	e.stats.SetLandingMode(float64(mode))
	e.stats.IncLandingModeSwitches(mode.String())
	log.Infof("Landing: mode %s active (batch=%d interval=%s adaptive=%t)",
		mode, cfg.BatchSize, cfg.Interval, cfg.AdaptiveEnabled)
	return nil
}

// ApplyCustomConfig installs an arbitrary validated config as the
// effective one without changing the active mode's label. Used for one-off
// tuning from the control surface.
func (e *Engine) ApplyCustomConfig(cfg ModeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	cur := e.effective.Load()
	e.effective.Store(&effective{Mode: cur.Mode, Config: cfg})
	e.controller.Reset()
	log.Infof("Landing: custom config applied under mode %s (batch=%d interval=%s adaptive=%t)",
		cur.Mode, cfg.BatchSize, cfg.Interval, cfg.AdaptiveEnabled)
	return nil
}

// Reapply re-reads the active mode's preset, picking up any preset edits
// made since the mode became active.
func (e *Engine) Reapply() error {
	cur := e.effective.Load()

	cfg, err := e.registry.Get(cur.Mode)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.effective.Store(&effective{Mode: cur.Mode, Config: cfg})
	e.controller.Reset()
	log.Infof("Landing: preset for mode %s re-applied", cur.Mode)
	return nil
}

// ActiveMode returns the label of the currently active mode.
func (e *Engine) ActiveMode() Mode {
	return e.effective.Load().Mode
}

// EffectiveConfig returns the config currently driving the flush loop.
func (e *Engine) EffectiveConfig() ModeConfig {
	return e.effective.Load().Config
}

// Presets exposes the mode registry for the control surface.
func (e *Engine) Presets() *Registry {
	return e.registry
}

// Counters is the lifetime counter snapshot for status reporting.
type Counters struct {
	Pending int64 `json:"pending"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Retried int64 `json:"retried"`
}

// Counters returns the current counter values. Pending is derived from
// queue size; the rest are monotonic lifetime totals.
func (e *Engine) Counters() Counters {
	return Counters{
		Pending: int64(e.queue.Size()),
		Success: e.success.Load(),
		Failed:  e.failed.Load(),
		Retried: e.retried.Load(),
	}
}

// NeedAlert reports whether the pending count exceeds threshold. External
// alerting hook; no alert history is kept here.
func (e *Engine) NeedAlert(threshold int) bool {
	return e.queue.Size() > threshold
}

// StatusSummary composes a one-line status for operational dashboards.
func (e *Engine) StatusSummary() string {
	eff := e.effective.Load()
	c := e.Counters()
	return fmt.Sprintf("mode=%s pending=%d success=%d failed=%d retried=%d batch=%d interval=%s adaptive=%t",
		eff.Mode, c.Pending, c.Success, c.Failed, c.Retried,
		eff.Config.BatchSize, eff.Config.Interval, eff.Config.AdaptiveEnabled)
}
