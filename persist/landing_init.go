package persist

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"moorhen/config"
	"moorhen/db"
	"moorhen/persist/landing"
	"moorhen/stats_collector"
)

// DroppedTask records a task lost past the retry ceiling, kept for a
// while so operators can reconcile manually.
type DroppedTask struct {
	Kind      string `json:"kind"`
	Id        string `json:"id"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason"`
	DroppedAt int64  `json:"dropped_at"`
}

var droppedCache *ttlcache.Cache[string, DroppedTask]

// InitLanding builds the landing engine from config: presets with
// config-file overrides, the MySQL backend writer and the dropped-task
// reconciliation cache. The engine is started and stops with ctx.
func InitLanding(ctx context.Context, details db.Details, stats stats_collector.StatsCollector) (*landing.Engine, error) {
	cfg := config.Config.Landing

	droppedTTL := time.Duration(cfg.DroppedTTLMinutes) * time.Minute
	if droppedTTL <= 0 {
		droppedTTL = time.Hour
	}
	droppedCache = ttlcache.New[string, DroppedTask](
		ttlcache.WithTTL[string, DroppedTask](droppedTTL),
	)
	go droppedCache.Start()
	go func() {
		<-ctx.Done()
		droppedCache.Stop()
	}()

	engine, err := landing.NewEngine(landing.EngineConfig{
		Registry:         buildRegistry(),
		Writer:           NewMySQLWriter(details, stats),
		Stats:            stats,
		RetryCeiling:     cfg.RetryCeiling,
		HysteresisWindow: cfg.HysteresisWindow,
		RateLimit:        cfg.RateLimit,
		BurstCapacity:    cfg.BurstCapacity,
		StartupDelay:     time.Duration(cfg.StartupDelaySeconds) * time.Second,
		OnDrop:           recordDropped,
	})
	if err != nil {
		return nil, err
	}

	engine.Start(ctx)
	return engine, nil
}

// buildRegistry seeds the built-in presets and applies any per-mode
// overrides from the config file. Invalid overrides are logged and
// skipped, never fatal.
func buildRegistry() *landing.Registry {
	registry := landing.NewRegistry()

	for name, preset := range config.Config.Landing.Modes {
		mode, err := landing.ParseMode(name)
		if err != nil {
			log.Warnf("Ignoring landing preset override: %v", err)
			continue
		}

		base, err := registry.Get(mode)
		if err != nil {
			continue
		}
		if preset.BatchSize > 0 {
			base.BatchSize = preset.BatchSize
		}
		if preset.IntervalMs > 0 {
			base.Interval = time.Duration(preset.IntervalMs) * time.Millisecond
		}
		if preset.Adaptive != nil {
			base.AdaptiveEnabled = *preset.Adaptive
		}
		if preset.BacklogThreshold != nil {
			base.BacklogThreshold = *preset.BacklogThreshold
		}
		if preset.IdleThreshold != nil {
			base.IdleThreshold = *preset.IdleThreshold
		}

		if err := registry.Update(mode, base); err != nil {
			log.Warnf("Invalid %s preset override: %v", mode, err)
		}
	}

	return registry
}

func recordDropped(task *landing.Task, reason error) {
	if droppedCache == nil {
		return
	}
	droppedCache.Set(task.Key.String(), DroppedTask{
		Kind:      task.Key.Kind,
		Id:        task.Key.Id,
		Attempts:  task.Attempt,
		Reason:    reason.Error(),
		DroppedAt: time.Now().Unix(),
	}, ttlcache.DefaultTTL)
}

// Dropped lists tasks recently lost past the retry ceiling.
func Dropped() []DroppedTask {
	if droppedCache == nil {
		return nil
	}
	items := droppedCache.Items()
	out := make([]DroppedTask, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value())
	}
	return out
}
