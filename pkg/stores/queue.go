package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/resilience"
)

// DurableQueue is the sqlite-backed offline queue. It survives process
// restarts, unlike resilience.MemoryQueue, and keeps the same FIFO and
// capacity-eviction contract.
type DurableQueue struct {
	store    *SQLiteStore
	capacity int
	obs      resilience.QueueObserver
}

var _ resilience.Queue = (*DurableQueue)(nil)

// NewDurableQueue creates a durable queue over an initialized store.
func NewDurableQueue(store *SQLiteStore, capacity int) *DurableQueue {
	if capacity <= 0 {
		capacity = resilience.DefaultQueueCapacity
	}
	return &DurableQueue{store: store, capacity: capacity}
}

// WithObserver attaches a metrics observer.
func (q *DurableQueue) WithObserver(obs resilience.QueueObserver) *DurableQueue {
	q.obs = obs
	return q
}

// Append adds op at the tail, evicting the oldest entries beyond capacity.
func (q *DurableQueue) Append(ctx context.Context, op resilience.QueuedOperation) error {
	args, err := json.Marshal(op.Args)
	if err != nil {
		return fmt.Errorf("encode queued args: %w", err)
	}

	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin queue append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO queued_operations (id, service, method, args, queued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.Service, op.Method, string(args), op.Timestamp.UTC(), op.RetryCount,
	); err != nil {
		return fmt.Errorf("append queued operation: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM queued_operations
		WHERE seq NOT IN (SELECT seq FROM queued_operations ORDER BY seq DESC LIMIT ?)`,
		q.capacity,
	)
	if err != nil {
		return fmt.Errorf("evict beyond capacity: %w", err)
	}
	evicted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	var depth int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_operations`).Scan(&depth); err != nil {
		return fmt.Errorf("count queue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if q.obs != nil {
		for i := int64(0); i < evicted; i++ {
			q.obs.ObserveQueueEviction()
		}
		q.obs.SetQueueDepth(depth)
	}
	return nil
}

// Snapshot returns all entries, oldest first.
func (q *DurableQueue) Snapshot(ctx context.Context) ([]resilience.QueuedOperation, error) {
	rows, err := q.store.db.QueryContext(ctx, `
		SELECT id, service, method, args, queued_at, retry_count
		FROM queued_operations ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}
	defer rows.Close()

	var ops []resilience.QueuedOperation
	for rows.Next() {
		var (
			op      resilience.QueuedOperation
			rawArgs string
		)
		if err := rows.Scan(&op.ID, &op.Service, &op.Method, &rawArgs, &op.Timestamp, &op.RetryCount); err != nil {
			return nil, fmt.Errorf("scan queued operation: %w", err)
		}
		if err := json.Unmarshal([]byte(rawArgs), &op.Args); err != nil {
			return nil, fmt.Errorf("decode queued args for %s: %w", op.ID, err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return ops, nil
}

// Remove deletes an entry by id. Missing entries are not an error.
func (q *DurableQueue) Remove(ctx context.Context, id string) error {
	result, err := q.store.db.ExecContext(ctx,
		`DELETE FROM queued_operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queued operation: %w", err)
	}

	if removed, err := result.RowsAffected(); err == nil && removed > 0 && q.obs != nil {
		if depth, err := q.Len(ctx); err == nil {
			q.obs.SetQueueDepth(depth)
		}
	}
	return nil
}

// Bump increments an entry's retry count and returns the new count. The
// increment and the read run in one transaction so a concurrent bump of the
// same entry can never be reported as this caller's count.
func (q *DurableQueue) Bump(ctx context.Context, id string) (int, error) {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin queue bump: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE queued_operations SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("bump queued operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return 0, fault.NewNotFound(fmt.Sprintf("queued operation %s not found", id))
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT retry_count FROM queued_operations WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("read retry count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit queue bump: %w", err)
	}
	return count, nil
}

// Len returns the number of queued entries.
func (q *DurableQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}
