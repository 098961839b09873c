package stores

import (
	"context"
	"testing"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/resilience"
)

func setupQueue(t *testing.T, capacity int) *DurableQueue {
	t.Helper()
	return NewDurableQueue(setupTestStore(t), capacity)
}

func appendOp(t *testing.T, q *DurableQueue, service, method string, args ...any) resilience.QueuedOperation {
	t.Helper()
	op, err := resilience.NewQueuedOperation(service, method, args...)
	if err != nil {
		t.Fatalf("failed to build operation: %v", err)
	}
	if err := q.Append(context.Background(), op); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	return op
}

func TestDurableQueueRoundTrip(t *testing.T) {
	q := setupQueue(t, 10)
	ctx := context.Background()

	op := appendOp(t, q, "calendar", "MoveBlock", "u1", "b1")

	entries, err := q.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if got.ID != op.ID || got.Service != "calendar" || got.Method != "MoveBlock" {
		t.Errorf("unexpected entry: %+v", got)
	}

	var userID, blockID string
	if err := got.Arg(0, &userID); err != nil {
		t.Fatalf("arg decode failed: %v", err)
	}
	_ = got.Arg(1, &blockID)
	if userID != "u1" || blockID != "b1" {
		t.Errorf("args must survive the round trip, got %q %q", userID, blockID)
	}
}

func TestDurableQueueFIFOOrder(t *testing.T) {
	q := setupQueue(t, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		appendOp(t, q, "tasks", "UpdateTask", i)
	}

	entries, _ := q.Snapshot(ctx)
	for i, op := range entries {
		var n int
		_ = op.Arg(0, &n)
		if n != i {
			t.Errorf("entry %d: expected arg %d, got %d", i, i, n)
		}
	}
}

func TestDurableQueueEvictsOldest(t *testing.T) {
	q := setupQueue(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendOp(t, q, "mail", "ArchiveMessage", i)
	}

	entries, _ := q.Snapshot(ctx)
	if len(entries) != 3 {
		t.Fatalf("expected capacity 3 to hold, got %d", len(entries))
	}
	var first, last int
	_ = entries[0].Arg(0, &first)
	_ = entries[2].Arg(0, &last)
	if first != 2 || last != 4 {
		t.Errorf("expected entries 2..4 retained in order, got %d..%d", first, last)
	}
}

func TestDurableQueueRemoveAndBump(t *testing.T) {
	q := setupQueue(t, 10)
	ctx := context.Background()

	op := appendOp(t, q, "calendar", "DeleteBlock", "u1", "b1")

	count, err := q.Bump(ctx, op.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected retry count 1, got %d (%v)", count, err)
	}
	count, _ = q.Bump(ctx, op.ID)
	if count != 2 {
		t.Errorf("expected retry count 2, got %d", count)
	}

	entries, _ := q.Snapshot(ctx)
	if len(entries) != 1 || entries[0].RetryCount != 2 {
		t.Errorf("expected persisted retry count 2, got %+v", entries)
	}

	if _, err := q.Bump(ctx, "missing"); !fault.IsNotFound(err) {
		t.Errorf("expected not-found for unknown entry, got %v", err)
	}

	if err := q.Remove(ctx, op.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
	if err := q.Remove(ctx, op.ID); err != nil {
		t.Errorf("removing a missing entry must be a no-op, got %v", err)
	}
}

type queueStats struct {
	depths    []int
	evictions int
}

func (s *queueStats) SetQueueDepth(n int)   { s.depths = append(s.depths, n) }
func (s *queueStats) ObserveQueueEviction() { s.evictions++ }

func TestDurableQueueReportsDepthAndEvictions(t *testing.T) {
	stats := &queueStats{}
	q := setupQueue(t, 3).WithObserver(stats)
	ctx := context.Background()

	var last resilience.QueuedOperation
	for i := 0; i < 5; i++ {
		last = appendOp(t, q, "mail", "ArchiveMessage", i)
	}

	if stats.evictions != 2 {
		t.Errorf("expected 2 evictions past capacity, got %d", stats.evictions)
	}
	if n := stats.depths[len(stats.depths)-1]; n != 3 {
		t.Errorf("expected depth 3 after fifth append, got %d", n)
	}

	if err := q.Remove(ctx, last.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if n := stats.depths[len(stats.depths)-1]; n != 2 {
		t.Errorf("expected depth 2 after remove, got %d", n)
	}
}

func TestDurableQueueServesReplayer(t *testing.T) {
	q := setupQueue(t, 10)
	ctx := context.Background()

	appendOp(t, q, "tasks", "AssignToBlock", "u1", "t1", "b1")

	var replayed int
	r := resilience.NewReplayer(q, nil, nil)
	r.Register("tasks", "AssignToBlock", func(ctx context.Context, op resilience.QueuedOperation) error {
		replayed++
		return nil
	})

	report, err := r.Replay(ctx)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if report.Replayed != 1 || report.Remaining != 0 || replayed != 1 {
		t.Errorf("unexpected replay result: %+v (handler calls %d)", report, replayed)
	}
}
