package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"moorhen/db"
	"moorhen/persist/landing"
	"moorhen/stats_collector"
)

func stubWriter(flushFuncs map[string]flushFunc) *MySQLWriter {
	return &MySQLWriter{
		// non-nil handle so WriteBatch reaches the flush funcs; the stubs
		// never touch it
		details:    db.Details{GeneralDb: sqlx.NewDb(nil, "mysql")},
		stats:      stats_collector.NewNoopStatsCollector(),
		flushFuncs: flushFuncs,
	}
}

func playerTask(id string) *landing.Task {
	return &landing.Task{
		Key:      landing.Key{Kind: KindPlayer, Id: id},
		Snapshot: PlayerRow{Id: id},
	}
}

func allianceTask(id string) *landing.Task {
	return &landing.Task{
		Key:      landing.Key{Kind: KindAlliance, Id: id},
		Snapshot: AllianceRow{Id: id},
	}
}

func TestWriteBatchGroupsByKind(t *testing.T) {
	flushed := make(map[string]int)
	w := stubWriter(map[string]flushFunc{
		KindPlayer: func(ctx context.Context, details db.Details, tasks []*landing.Task) error {
			flushed[KindPlayer] += len(tasks)
			return nil
		},
		KindAlliance: func(ctx context.Context, details db.Details, tasks []*landing.Task) error {
			flushed[KindAlliance] += len(tasks)
			return nil
		},
	})

	tasks := []*landing.Task{
		playerTask("p1"), allianceTask("a1"), playerTask("p2"), playerTask("p3"),
	}
	results, err := w.WriteBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	if flushed[KindPlayer] != 3 || flushed[KindAlliance] != 1 {
		t.Errorf("Expected 3 players and 1 alliance flushed, got %v", flushed)
	}
	for i, result := range results {
		if result.Err != nil {
			t.Errorf("Expected success for task %d, got %v", i, result.Err)
		}
		if result.Key != tasks[i].Key {
			t.Errorf("Expected result %d aligned with task, got %v", i, result.Key)
		}
	}
}

func TestWriteBatchFailedGroupOnly(t *testing.T) {
	flushErr := errors.New("table full")
	w := stubWriter(map[string]flushFunc{
		KindPlayer: func(ctx context.Context, details db.Details, tasks []*landing.Task) error {
			return nil
		},
		KindAlliance: func(ctx context.Context, details db.Details, tasks []*landing.Task) error {
			return flushErr
		},
	})

	tasks := []*landing.Task{playerTask("p1"), allianceTask("a1"), playerTask("p2")}
	results, err := w.WriteBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	if results[0].Err != nil || results[2].Err != nil {
		t.Error("Expected player tasks unaffected by the alliance failure")
	}
	if !errors.Is(results[1].Err, flushErr) {
		t.Errorf("Expected alliance task to carry the flush error, got %v", results[1].Err)
	}
}

func TestWriteBatchUnknownKind(t *testing.T) {
	w := stubWriter(map[string]flushFunc{})

	tasks := []*landing.Task{{Key: landing.Key{Kind: "dragon", Id: "d1"}}}
	results, err := w.WriteBatch(context.Background(), tasks)
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}
	if results[0].Err == nil {
		t.Error("Expected per-task error for unknown entity kind")
	}
}

func TestWriteBatchNilDatabase(t *testing.T) {
	w := NewMySQLWriter(db.Details{}, stats_collector.NewNoopStatsCollector())

	_, err := w.WriteBatch(context.Background(), []*landing.Task{playerTask("p1")})
	if err == nil {
		t.Error("Expected top-level error with no database handle")
	}
}
