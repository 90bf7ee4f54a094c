package source_tracker

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// SourceInfo is the last-seen record for one game-logic source posting
// snapshots to the ingest endpoint.
type SourceInfo struct {
	RemoteAddr string
	LastUpdate int64
	Snapshots  int64
}

// SourceTracker keeps a TTL'd view of which sources are alive, for the
// operational API. Entries expire when a source goes quiet.
type SourceTracker struct {
	maxSourceTTL time.Duration
	sources      *ttlcache.Cache[string, SourceInfo]
}

func NewSourceTracker(maxSourceTTLHours int) *SourceTracker {
	maxSourceTTL := time.Hour * time.Duration(maxSourceTTLHours)
	return &SourceTracker{
		maxSourceTTL: maxSourceTTL,
		sources: ttlcache.New[string, SourceInfo](
			ttlcache.WithTTL[string, SourceInfo](maxSourceTTL),
		),
	}
}

func (tracker *SourceTracker) Track(sourceId, remoteAddr string, snapshots int) {
	if sourceId == "" {
		return
	}
	var total int64
	if existing := tracker.sources.Get(sourceId); existing != nil {
		total = existing.Value().Snapshots
	}
	tracker.sources.Set(sourceId, SourceInfo{
		RemoteAddr: remoteAddr,
		LastUpdate: time.Now().Unix(),
		Snapshots:  total + int64(snapshots),
	}, tracker.maxSourceTTL)
}

func (tracker *SourceTracker) IterateSources(yield func(string, SourceInfo) bool) {
	for _, item := range tracker.sources.Items() {
		if !yield(item.Key(), item.Value()) {
			return
		}
	}
}

func (tracker *SourceTracker) Run(ctx context.Context) {
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	go func() {
		defer tracker.sources.Stop()
		<-ctx.Done()
	}()
	tracker.sources.Start()
}
