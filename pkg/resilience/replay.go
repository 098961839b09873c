package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// QueuedError is the outcome returned when a mutation exhausted its retries
// on a connectivity-class failure and was parked in the offline queue.
// Callers must treat it as "accepted but not yet applied", not as success.
type QueuedError struct {
	// OperationID is the id of the queue entry.
	OperationID string

	// Service and Method identify the parked call.
	Service string
	Method  string
}

// Error implements the error interface.
func (e *QueuedError) Error() string {
	return fmt.Sprintf("%s.%s queued for replay (operation=%s): pending connectivity", e.Service, e.Method, e.OperationID)
}

// IsQueued reports whether err is a queued-for-later outcome.
func IsQueued(err error) bool {
	var q *QueuedError
	return errors.As(err, &q)
}

// ReplayFunc re-executes a queued operation against the live service.
type ReplayFunc func(ctx context.Context, op QueuedOperation) error

// ReplayReport summarizes one replay pass over the queue.
type ReplayReport struct {
	// Replayed is the number of entries applied and removed.
	Replayed int `json:"replayed"`

	// Dropped is the number of entries discarded after exceeding the
	// retry ceiling. Each drop is a terminal loss and is logged as such.
	Dropped int `json:"dropped"`

	// Remaining is the number of entries still queued after the pass.
	Remaining int `json:"remaining"`
}

// Replayer drains the offline queue when connectivity returns. Entries are
// replayed oldest-first through the same classify/retry logic as live calls.
type Replayer struct {
	queue    Queue
	retrier  *Retrier
	handlers map[string]ReplayFunc
	ceiling  int
	log      *telemetry.Logger
	metrics  ReplayObserver
}

// ReplayObserver receives replay outcomes for metrics.
type ReplayObserver interface {
	ObserveReplay(service, method, outcome string)
}

// NewReplayer creates a replayer over the given queue.
func NewReplayer(queue Queue, retrier *Retrier, log *telemetry.Logger) *Replayer {
	if retrier == nil {
		retrier = NewRetrier()
	}
	return &Replayer{
		queue:    queue,
		retrier:  retrier,
		handlers: make(map[string]ReplayFunc),
		ceiling:  DefaultReplayCeiling,
		log:      log,
	}
}

// WithCeiling overrides the per-entry retry ceiling.
func (r *Replayer) WithCeiling(ceiling int) *Replayer {
	if ceiling > 0 {
		r.ceiling = ceiling
	}
	return r
}

// WithObserver attaches a metrics observer.
func (r *Replayer) WithObserver(obs ReplayObserver) *Replayer {
	r.metrics = obs
	return r
}

// Register installs the replay handler for a service method.
func (r *Replayer) Register(service, method string, fn ReplayFunc) {
	r.handlers[handlerKey(service, method)] = fn
}

// Replay drains the queue oldest-first. It is invoked on the reconnect
// signal from whatever layer tracks connectivity. Entries whose replay
// fails again have their retry count bumped and are dropped once the
// ceiling is exceeded.
func (r *Replayer) Replay(ctx context.Context) (ReplayReport, error) {
	var report ReplayReport

	entries, err := r.queue.Snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("snapshot offline queue: %w", err)
	}

	for _, op := range entries {
		if err := ctx.Err(); err != nil {
			remaining, _ := r.queue.Len(ctx)
			report.Remaining = remaining
			return report, err
		}

		outcome := r.replayOne(ctx, op)
		switch outcome {
		case "replayed":
			report.Replayed++
		case "dropped":
			report.Dropped++
		}
		r.observe(op, outcome)
	}

	remaining, err := r.queue.Len(ctx)
	if err != nil {
		return report, err
	}
	report.Remaining = remaining
	return report, nil
}

func (r *Replayer) replayOne(ctx context.Context, op QueuedOperation) string {
	fn, ok := r.handlers[handlerKey(op.Service, op.Method)]
	if !ok {
		// No handler means the entry can never be applied; keeping it
		// would wedge the queue.
		r.logger().WithField("operation_id", op.ID).
			Warnf("dropping queued %s.%s: no replay handler", op.Service, op.Method)
		_ = r.queue.Remove(ctx, op.ID)
		return "dropped"
	}

	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, op)
	})
	if err == nil {
		_ = r.queue.Remove(ctx, op.ID)
		r.logger().WithField("operation_id", op.ID).
			Debugf("replayed %s.%s", op.Service, op.Method)
		return "replayed"
	}

	if fault.Classify(err) != fault.ClassTransient {
		// Permanent failures cannot succeed on a later pass either.
		r.logger().WithError(err).WithField("operation_id", op.ID).
			Warnf("dropping queued %s.%s: permanent failure on replay", op.Service, op.Method)
		_ = r.queue.Remove(ctx, op.ID)
		return "dropped"
	}

	count, bumpErr := r.queue.Bump(ctx, op.ID)
	if bumpErr != nil {
		return "missing"
	}
	if count >= r.ceiling {
		r.logger().WithError(err).WithField("operation_id", op.ID).
			Errorf("dropping queued %s.%s after %d failed replays: terminal loss", op.Service, op.Method, count)
		_ = r.queue.Remove(ctx, op.ID)
		return "dropped"
	}

	r.logger().WithError(err).WithField("operation_id", op.ID).
		Debugf("replay of %s.%s failed, retry %d/%d", op.Service, op.Method, count, r.ceiling)
	return "retained"
}

func (r *Replayer) observe(op QueuedOperation, outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveReplay(op.Service, op.Method, outcome)
	}
}

func (r *Replayer) logger() *telemetry.Logger {
	if r.log != nil {
		return r.log
	}
	return telemetry.NopLogger()
}

func handlerKey(service, method string) string {
	return service + "." + method
}
