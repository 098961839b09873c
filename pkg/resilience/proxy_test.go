package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// stubCalendar fails MoveBlock with a scripted error until it runs out,
// then succeeds. Other methods succeed immediately.
type stubCalendar struct {
	moveErr   error
	failMoves int
	moveCalls int
	moved     []string
}

func (s *stubCalendar) ListBlocks(_ context.Context, _ string, _, _ time.Time) ([]services.TimeBlock, error) {
	return nil, nil
}

func (s *stubCalendar) GetBlock(_ context.Context, _, blockID string) (*services.TimeBlock, error) {
	return &services.TimeBlock{ID: blockID}, nil
}

func (s *stubCalendar) CreateBlock(_ context.Context, block services.TimeBlock) (*services.TimeBlock, error) {
	block.ID = "created"
	return &block, nil
}

func (s *stubCalendar) MoveBlock(_ context.Context, _, blockID string, _, _ time.Time) error {
	s.moveCalls++
	if s.moveCalls <= s.failMoves {
		return s.moveErr
	}
	s.moved = append(s.moved, blockID)
	return nil
}

func (s *stubCalendar) DeleteBlock(_ context.Context, _, _ string) error {
	return nil
}

func (s *stubCalendar) CheckConflicts(_ context.Context, _ string, _, _ time.Time, _ string) ([]services.Conflict, error) {
	return nil, nil
}

func newTestCalendarProxy(inner services.Calendar, queue Queue) *CalendarProxy {
	return NewCalendarProxy(inner, noSleepRetrier(), queue, nil)
}

func TestProxyMutationRetriesThroughTransient(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: fault.NewTransient("blip", nil), failMoves: 2}
	q := NewMemoryQueue(10)
	p := newTestCalendarProxy(inner, q)

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if inner.moveCalls != 3 {
		t.Errorf("Expected 3 attempts, got %d", inner.moveCalls)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("Successful mutation must not queue, got %d entries", n)
	}
}

func TestProxyQueuesExhaustedTransientMutation(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: fault.NewTransient("offline", nil), failMoves: 100}
	q := NewMemoryQueue(10)
	p := newTestCalendarProxy(inner, q)

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("Expected queued outcome, got nil")
	}
	if !IsQueued(err) {
		t.Fatalf("Expected QueuedError, got %v", err)
	}

	var qe *QueuedError
	errors.As(err, &qe)
	if qe.Service != services.ServiceCalendar || qe.Method != "MoveBlock" {
		t.Errorf("Unexpected queued identity: %+v", qe)
	}

	entries, _ := q.Snapshot(ctx)
	if len(entries) != 1 {
		t.Fatalf("Expected exactly one queue entry, got %d", len(entries))
	}
	if entries[0].ID != qe.OperationID {
		t.Errorf("QueuedError must reference the queue entry")
	}
	var blockID string
	if err := entries[0].Arg(1, &blockID); err != nil || blockID != "b1" {
		t.Errorf("Expected args captured in call order, got %q (%v)", blockID, err)
	}
}

func TestProxyDoesNotQueuePermanentFailure(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: fault.NewPermanent("rejected", nil), failMoves: 100}
	q := NewMemoryQueue(10)
	p := newTestCalendarProxy(inner, q)

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if !fault.IsPermanent(err) {
		t.Fatalf("Expected permanent fault, got %v", err)
	}
	if IsQueued(err) {
		t.Error("Permanent failures must not be queued")
	}
	if inner.moveCalls != 1 {
		t.Errorf("Expected 1 attempt, got %d", inner.moveCalls)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("Expected empty queue, got %d entries", n)
	}
}

func TestProxyDoesNotQueueConflict(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: fault.NewConflict("overlap", nil), failMoves: 100}
	q := NewMemoryQueue(10)
	p := newTestCalendarProxy(inner, q)

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if !fault.IsConflict(err) {
		t.Fatalf("Expected conflict fault, got %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("Conflicts must not be queued, got %d entries", n)
	}
}

func TestProxyDoesNotQueueOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &stubCalendar{moveErr: fault.NewTransient("offline", nil), failMoves: 100}
	q := NewMemoryQueue(10)
	p := newTestCalendarProxy(inner, q)

	// Cancel during backoff so the retry loop exits with the caller gone.
	p.core.retrier.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}
	if IsQueued(err) {
		t.Error("Cancelled calls must never be queued")
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("Expected empty queue, got %d entries", n)
	}
}

func TestProxyTranslatesUnclassifiedError(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: errors.New("schema violation"), failMoves: 100}
	p := newTestCalendarProxy(inner, NewMemoryQueue(10))

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))

	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("Expected translated fault, got %v", err)
	}
	if fe.Service != services.ServiceCalendar || fe.Operation != "MoveBlock" {
		t.Errorf("Expected service/operation context, got %+v", fe)
	}
	if fe.Class != fault.ClassPermanent {
		t.Errorf("Expected permanent classification, got %v", fe.Class)
	}
}

func TestProxyReadNeverQueues(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)
	inner := &failingReadCalendar{err: fault.NewTransient("offline", nil)}
	p := newTestCalendarProxy(inner, q)

	if _, err := p.ListBlocks(ctx, "u1", time.Now(), time.Now().Add(time.Hour)); err == nil {
		t.Fatal("Expected read failure to surface")
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("Reads must never queue, got %d entries", n)
	}
}

func TestProxyReplayRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)

	offline := &stubCalendar{moveErr: fault.NewTransient("offline", nil), failMoves: DefaultMaxAttempts}
	p := newTestCalendarProxy(offline, q)

	err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	if !IsQueued(err) {
		t.Fatalf("Expected queued outcome, got %v", err)
	}

	// Connectivity returns: the stub stops failing and replay applies the
	// parked move against the wrapped service.
	r := testReplayer(q)
	p.RegisterReplay(r)

	report, err := r.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if report.Replayed != 1 || report.Remaining != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if len(offline.moved) != 1 || offline.moved[0] != "b1" {
		t.Errorf("Expected replay to reach the wrapped service, got %v", offline.moved)
	}
}

func TestProxyObserverOutcomes(t *testing.T) {
	ctx := context.Background()
	inner := &stubCalendar{moveErr: fault.NewTransient("offline", nil), failMoves: 100}

	outcomes := make(map[string]int)
	p := newTestCalendarProxy(inner, NewMemoryQueue(10)).WithObserver(callObserverFunc(func(service, method, outcome string) {
		outcomes[outcome]++
	}))

	_ = p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour))
	_ = p.DeleteBlock(ctx, "u1", "b2")
	_, _ = p.GetBlock(ctx, "u1", "b3")

	if outcomes["queued"] != 1 {
		t.Errorf("Expected 1 queued outcome, got %d", outcomes["queued"])
	}
	if outcomes["applied"] != 1 {
		t.Errorf("Expected 1 applied outcome, got %d", outcomes["applied"])
	}
	if outcomes["ok"] != 1 {
		t.Errorf("Expected 1 ok outcome, got %d", outcomes["ok"])
	}
}

func TestProxyOpensCallSpans(t *testing.T) {
	ctx := context.Background()
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{}, "dayflow-test", "", "")
	if err != nil {
		t.Fatalf("Failed to build tracer: %v", err)
	}
	defer func() { _ = tracer.Shutdown(ctx) }()

	inner := &spanCheckCalendar{}
	p := newTestCalendarProxy(inner, NewMemoryQueue(10)).WithTracer(tracer)

	if err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("MoveBlock failed: %v", err)
	}
	if !inner.mutateInSpan {
		t.Error("Expected mutation to run inside a call span")
	}

	if _, err := p.GetBlock(ctx, "u1", "b1"); err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if !inner.readInSpan {
		t.Error("Expected read to run inside a call span")
	}

	// A failing call must still end its span and surface the error.
	inner.moveErr = fault.NewPermanent("rejected", nil)
	inner.failMoves = 100
	if err := p.MoveBlock(ctx, "u1", "b1", time.Now(), time.Now().Add(time.Hour)); !fault.IsPermanent(err) {
		t.Errorf("Expected permanent fault with tracing attached, got %v", err)
	}
}

// spanCheckCalendar records whether calls arrive with a live span context.
type spanCheckCalendar struct {
	stubCalendar
	readInSpan   bool
	mutateInSpan bool
}

func (c *spanCheckCalendar) GetBlock(ctx context.Context, _, blockID string) (*services.TimeBlock, error) {
	c.readInSpan = trace.SpanFromContext(ctx).SpanContext().IsValid()
	return &services.TimeBlock{ID: blockID}, nil
}

func (c *spanCheckCalendar) MoveBlock(ctx context.Context, userID, blockID string, start, end time.Time) error {
	c.mutateInSpan = trace.SpanFromContext(ctx).SpanContext().IsValid()
	return c.stubCalendar.MoveBlock(ctx, userID, blockID, start, end)
}

type failingReadCalendar struct {
	stubCalendar
	err error
}

func (f *failingReadCalendar) ListBlocks(_ context.Context, _ string, _, _ time.Time) ([]services.TimeBlock, error) {
	return nil, f.err
}

type callObserverFunc func(service, method, outcome string)

func (f callObserverFunc) ObserveServiceCall(service, method, outcome string) {
	f(service, method, outcome)
}
