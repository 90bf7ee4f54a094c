package persist

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"moorhen/persist/landing"
)

// ingressCounters tracks enqueues per kind. Producers are unbounded
// concurrent game-logic callers, so the counters are sharded.
var ingressCounters = xsync.NewMapOf[string, *xsync.Counter]()

func countIngress(kind string) {
	counter, _ := ingressCounters.LoadOrCompute(kind, func() *xsync.Counter {
		return xsync.NewCounter()
	})
	counter.Inc()
}

// EnqueuePlayer buffers the latest player snapshot for write-behind
// persistence. Never blocks the caller.
func EnqueuePlayer(engine *landing.Engine, row PlayerRow) {
	if row.Updated == 0 {
		row.Updated = time.Now().Unix()
	}
	engine.Enqueue(landing.Key{Kind: KindPlayer, Id: row.Id}, row)
	countIngress(KindPlayer)
}

// EnqueueAlliance buffers the latest alliance snapshot.
func EnqueueAlliance(engine *landing.Engine, row AllianceRow) {
	if row.Updated == 0 {
		row.Updated = time.Now().Unix()
	}
	engine.Enqueue(landing.Key{Kind: KindAlliance, Id: row.Id}, row)
	countIngress(KindAlliance)
}

// IngressCounts returns lifetime enqueue totals per kind.
func IngressCounts() map[string]int64 {
	out := make(map[string]int64)
	ingressCounters.Range(func(kind string, counter *xsync.Counter) bool {
		out[kind] = counter.Value()
		return true
	})
	return out
}
