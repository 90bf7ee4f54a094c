package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"

	"moorhen/db"
	"moorhen/persist/landing"
	"moorhen/stats_collector"
)

// Entity kinds accepted by the pipeline.
const (
	KindPlayer   = "player"
	KindAlliance = "alliance"
)

const (
	mysqlDeadlock   = 1213
	deadlockRetries = 3
)

type flushFunc func(ctx context.Context, details db.Details, tasks []*landing.Task) error

// MySQLWriter is the backend writer: batch upserts per entity kind via
// sqlx named queries. Upserts are idempotent per (kind, id, snapshot), so
// engine-level retries are safe.
type MySQLWriter struct {
	details    db.Details
	stats      stats_collector.StatsCollector
	flushFuncs map[string]flushFunc
}

var _ landing.Writer = (*MySQLWriter)(nil)

func NewMySQLWriter(details db.Details, stats stats_collector.StatsCollector) *MySQLWriter {
	return &MySQLWriter{
		details: details,
		stats:   stats,
		flushFuncs: map[string]flushFunc{
			KindPlayer:   flushPlayerBatch,
			KindAlliance: flushAllianceBatch,
		},
	}
}

// WriteBatch groups tasks by kind and upserts each group in one statement.
// Results align with tasks by index; a failed group fails only its own
// tasks. A nil database handle is reported as a top-level error so the
// engine treats the whole batch as failed.
func (w *MySQLWriter) WriteBatch(ctx context.Context, tasks []*landing.Task) ([]landing.Result, error) {
	if w.details.GeneralDb == nil {
		return nil, errors.New("database unavailable")
	}

	results := make([]landing.Result, len(tasks))
	groups := make(map[string][]int)
	for i, task := range tasks {
		results[i].Key = task.Key
		groups[task.Key.Kind] = append(groups[task.Key.Kind], i)
	}

	for kind, idxs := range groups {
		flush, ok := w.flushFuncs[kind]
		if !ok {
			err := fmt.Errorf("no writer for entity kind %q", kind)
			for _, i := range idxs {
				results[i].Err = err
			}
			continue
		}

		group := make([]*landing.Task, 0, len(idxs))
		for _, i := range idxs {
			group = append(group, tasks[i])
		}

		err := w.flushWithRetry(ctx, kind, flush, group)
		w.stats.IncDbQuery("upsert "+kind, err)
		if err != nil {
			for _, i := range idxs {
				results[i].Err = err
			}
		}
	}

	return results, nil
}

// flushWithRetry retries MySQL deadlocks a few times before giving up.
// This is independent of the engine's retry ceiling: a deadlock retry
// happens inside one batch write, invisible to the engine.
func (w *MySQLWriter) flushWithRetry(ctx context.Context, kind string, flush flushFunc, tasks []*landing.Task) error {
	var err error
	for attempt := 0; attempt <= deadlockRetries; attempt++ {
		err = flush(ctx, w.details, tasks)
		if err == nil {
			return nil
		}
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDeadlock && attempt < deadlockRetries {
			log.Warnf("Deadlock on %s batch attempt %d/%d (%d tasks), retrying...",
				kind, attempt+1, deadlockRetries, len(tasks))
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func flushPlayerBatch(ctx context.Context, details db.Details, tasks []*landing.Task) error {
	rows := make([]PlayerRow, 0, len(tasks))
	for _, task := range tasks {
		row, ok := task.Snapshot.(PlayerRow)
		if !ok {
			return fmt.Errorf("player task %s holds %T, expected PlayerRow", task.Key, task.Snapshot)
		}
		rows = append(rows, row)
	}
	_, err := details.GeneralDb.NamedExecContext(ctx, playerBatchUpsertQuery, rows)
	return err
}

func flushAllianceBatch(ctx context.Context, details db.Details, tasks []*landing.Task) error {
	rows := make([]AllianceRow, 0, len(tasks))
	for _, task := range tasks {
		row, ok := task.Snapshot.(AllianceRow)
		if !ok {
			return fmt.Errorf("alliance task %s holds %T, expected AllianceRow", task.Key, task.Snapshot)
		}
		rows = append(rows, row)
	}
	_, err := details.GeneralDb.NamedExecContext(ctx, allianceBatchUpsertQuery, rows)
	return err
}
