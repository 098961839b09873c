package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/fault"
)

// Queue capacity and replay defaults.
const (
	DefaultQueueCapacity = 100
	DefaultReplayCeiling = 3
)

// QueuedOperation is a mutating collaborator call that failed with a
// connectivity-class error and is waiting for replay.
type QueuedOperation struct {
	// ID is the unique identifier of the queued entry.
	ID string `json:"id"`

	// Service is the logical service name (calendar, tasks, mail).
	Service string `json:"service"`

	// Method is the service method that failed.
	Method string `json:"method"`

	// Args are the encoded call arguments, in call order.
	Args []json.RawMessage `json:"args"`

	// Timestamp is when the operation was queued.
	Timestamp time.Time `json:"timestamp"`

	// RetryCount is the number of failed replay attempts so far.
	RetryCount int `json:"retry_count"`
}

// NewQueuedOperation encodes a failed call into a queue entry.
// Argument order is preserved; values that fail to encode abort the append
// rather than queueing a corrupt entry.
func NewQueuedOperation(service, method string, args ...any) (QueuedOperation, error) {
	encoded := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return QueuedOperation{}, fmt.Errorf("encode arg %d of %s.%s: %w", i, service, method, err)
		}
		encoded = append(encoded, raw)
	}

	return QueuedOperation{
		ID:        uuid.New().String(),
		Service:   service,
		Method:    method,
		Args:      encoded,
		Timestamp: time.Now(),
	}, nil
}

// Arg decodes the i-th argument into out.
func (op QueuedOperation) Arg(i int, out any) error {
	if i < 0 || i >= len(op.Args) {
		return fmt.Errorf("%s.%s has %d args, requested %d", op.Service, op.Method, len(op.Args), i)
	}
	return json.Unmarshal(op.Args[i], out)
}

// QueueObserver receives depth and eviction events for metrics.
type QueueObserver interface {
	SetQueueDepth(n int)
	ObserveQueueEviction()
}

// Queue is the durable, ordered, bounded buffer of failed mutating
// operations. Implementations must preserve FIFO order and evict the oldest
// entry when appending beyond capacity.
type Queue interface {
	// Append adds an operation at the tail, evicting the oldest entry if
	// the queue is at capacity.
	Append(ctx context.Context, op QueuedOperation) error

	// Snapshot returns all entries, oldest first.
	Snapshot(ctx context.Context) ([]QueuedOperation, error)

	// Remove deletes an entry by id. Missing entries are not an error.
	Remove(ctx context.Context, id string) error

	// Bump increments an entry's retry count and returns the new count.
	Bump(ctx context.Context, id string) (int, error)

	// Len returns the number of queued entries.
	Len(ctx context.Context) (int, error)
}

// MemoryQueue is the in-process Queue. Entries are lost on restart; the
// sqlite-backed queue in pkg/stores is used where that matters.
type MemoryQueue struct {
	mu       sync.Mutex
	entries  []QueuedOperation
	capacity int
	obs      QueueObserver
}

// NewMemoryQueue creates a bounded in-memory queue.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &MemoryQueue{capacity: capacity}
}

// WithObserver attaches a metrics observer.
func (q *MemoryQueue) WithObserver(obs QueueObserver) *MemoryQueue {
	q.obs = obs
	return q
}

// Append adds op at the tail, evicting the oldest entry at capacity.
func (q *MemoryQueue) Append(_ context.Context, op QueuedOperation) error {
	q.mu.Lock()
	evicted := false
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
		evicted = true
	}
	q.entries = append(q.entries, op)
	depth := len(q.entries)
	q.mu.Unlock()

	if q.obs != nil {
		if evicted {
			q.obs.ObserveQueueEviction()
		}
		q.obs.SetQueueDepth(depth)
	}
	return nil
}

// Snapshot returns a copy of all entries, oldest first.
func (q *MemoryQueue) Snapshot(_ context.Context) ([]QueuedOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedOperation, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

// Remove deletes the entry with the given id, if present.
func (q *MemoryQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	depth := -1
	for i, op := range q.entries {
		if op.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			depth = len(q.entries)
			break
		}
	}
	q.mu.Unlock()

	if depth >= 0 && q.obs != nil {
		q.obs.SetQueueDepth(depth)
	}
	return nil
}

// Bump increments the retry count of the entry with the given id.
func (q *MemoryQueue) Bump(_ context.Context, id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries[i].RetryCount++
			return q.entries[i].RetryCount, nil
		}
	}
	return 0, fault.NewNotFound(fmt.Sprintf("queued operation %s not found", id))
}

// Len returns the number of queued entries.
func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}
