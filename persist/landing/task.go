package landing

import (
	"context"
	"time"
)

// Key identifies one game entity across the persistence pipeline.
type Key struct {
	Kind string // entity type, e.g. "player", "alliance"
	Id   string // unique within its kind
}

func (k Key) String() string {
	return k.Kind + ":" + k.Id
}

// Task is one pending write. Snapshot always holds the latest known state
// at enqueue time, not a diff, so a coalesced write is never stale relative
// to an earlier one for the same key.
type Task struct {
	Key        Key
	Snapshot   any
	EnqueuedAt time.Time
	Attempt    int
}

// Result is the per-task outcome of a batch write. A nil Err means the
// task was durably written.
type Result struct {
	Key Key
	Err error
}

// Writer is the backend boundary. WriteBatch must be idempotent per
// (kind, id, snapshot) so that retries are safe. Results align with tasks
// by index. A non-nil top-level error means the backend could not be
// reached at all and every task in the batch is treated as failed.
type Writer interface {
	WriteBatch(ctx context.Context, tasks []*Task) ([]Result, error)
}
