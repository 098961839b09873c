package proposal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// Store defaults.
const (
	DefaultTTL             = 4 * time.Hour
	DefaultJanitorInterval = 5 * time.Minute
)

// Observer receives store lifecycle counts for metrics.
type Observer interface {
	ObserveProposalsExpired(n int)
	SetProposalsPending(n int)
}

// Store is the keyed, expiring, consume-once proposal store. It is created
// once at process start and shared by all orchestrators. Lock granularity is
// per proposal: the registry lock is only held for map access, never across
// a consume decision of another entry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl     time.Duration
	now     func() time.Time
	log     *telemetry.Logger
	metrics Observer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// entry pairs a proposal with its own lock so concurrent consumes of the
// same id serialize without blocking unrelated proposals.
type entry struct {
	mu sync.Mutex
	p  Proposal
}

// NewStore creates a proposal store with the given TTL. A non-positive TTL
// selects the default.
func NewStore(ttl time.Duration, log *telemetry.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
		log:     log.NewComponentLogger("proposal-store"),
		stopCh:  make(chan struct{}),
	}
}

// WithObserver attaches a metrics observer.
func (s *Store) WithObserver(obs Observer) *Store {
	s.metrics = obs
	return s
}

// WithClock overrides the store's clock. Tests use it to drive expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// TTL returns the proposal time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create stores a new proposal and returns it with its assigned id and
// timestamp. Create always succeeds.
func (s *Store) Create(workflowType string, owner OwnerContext, changes []ChangeDescriptor, summary string) Proposal {
	p := Proposal{
		ID:           uuid.New().String(),
		WorkflowType: workflowType,
		Owner:        owner,
		Changes:      changes,
		Summary:      summary,
		CreatedAt:    s.now(),
	}

	s.mu.Lock()
	s.entries[p.ID] = &entry{p: p}
	pending := len(s.entries)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetProposalsPending(pending)
	}
	s.log.WithProposalID(p.ID).WithWorkflow(workflowType).
		Debugf("proposal created with %d changes", len(changes))
	return p
}

// Get returns a copy of the proposal if it is still pending for the given
// owner. Expired or consumed proposals, and proposals belonging to another
// user, report not-found. Get never mutates state; expiry here is lazy.
func (s *Store) Get(id string, owner OwnerContext) (*Proposal, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, errNotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p.Owner.UserID != owner.UserID || !e.p.Pending(s.now(), s.ttl) {
		return nil, errNotFound(id)
	}

	p := clone(e.p)
	return &p, nil
}

// Consume atomically transitions the proposal from pending to consumed and
// returns its payload. Exactly one caller observes success for a given id;
// every other concurrent or later call reports not-found. This is the
// mechanism behind apply-exactly-once.
func (s *Store) Consume(id string, owner OwnerContext) (*Proposal, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, errNotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p.Owner.UserID != owner.UserID || !e.p.Pending(s.now(), s.ttl) {
		return nil, errNotFound(id)
	}

	consumedAt := s.now()
	e.p.ConsumedAt = &consumedAt

	p := clone(e.p)
	s.log.WithProposalID(id).WithWorkflow(p.WorkflowType).Debug("proposal consumed")
	return &p, nil
}

// Delete discards a proposal. Used when the user rejects it. Deleting a
// missing, expired, or foreign proposal reports not-found; callers treat
// that as already gone. A delete and a consume of the same id race like two
// consumes: exactly one of them succeeds.
func (s *Store) Delete(id string, owner OwnerContext) error {
	e := s.lookup(id)
	if e == nil {
		return errNotFound(id)
	}

	e.mu.Lock()
	pending := e.p.Owner.UserID == owner.UserID && e.p.Pending(s.now(), s.ttl)
	if pending {
		// Tombstone while still holding the entry lock so a racing
		// Consume cannot slip in between this decision and the map
		// removal below.
		deletedAt := s.now()
		e.p.ConsumedAt = &deletedAt
	}
	e.mu.Unlock()

	if !pending {
		return errNotFound(id)
	}

	s.mu.Lock()
	delete(s.entries, id)
	remaining := len(s.entries)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetProposalsPending(remaining)
	}
	s.log.WithProposalID(id).Debug("proposal deleted")
	return nil
}

// FindLatestByWorkflow returns the most recent pending proposal for the
// owner and workflow type, optionally narrowed by planning date and by the
// owner's block id. Used when a confirmation arrives without an explicit id.
func (s *Store) FindLatestByWorkflow(owner OwnerContext, workflowType, date string) (*Proposal, error) {
	now := s.now()

	s.mu.RLock()
	candidates := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		candidates = append(candidates, e)
	}
	s.mu.RUnlock()

	var best *Proposal
	for _, e := range candidates {
		e.mu.Lock()
		p := e.p
		e.mu.Unlock()

		if p.Owner.UserID != owner.UserID || p.WorkflowType != workflowType {
			continue
		}
		if date != "" && p.Owner.Date != date {
			continue
		}
		if owner.BlockID != "" && p.Owner.BlockID != owner.BlockID {
			continue
		}
		if !p.Pending(now, s.ttl) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			c := clone(p)
			best = &c
		}
	}

	if best == nil {
		return nil, fault.NewNotFound("no pending proposal for workflow " + workflowType)
	}
	return best, nil
}

// Start runs the janitor loop until ctx is cancelled or Stop is called.
// Expired proposals and consumed proposals past TTL are removed.
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the janitor loop.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// sweep removes entries past TTL regardless of consumption state.
func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	expired := 0
	for id, e := range s.entries {
		e.mu.Lock()
		gone := !now.Before(e.p.CreatedAt.Add(s.ttl))
		consumed := e.p.ConsumedAt != nil
		e.mu.Unlock()

		if gone {
			delete(s.entries, id)
			if !consumed {
				expired++
			}
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	if expired > 0 {
		s.log.Debugf("janitor removed %d expired proposals", expired)
	}
	if s.metrics != nil {
		if expired > 0 {
			s.metrics.ObserveProposalsExpired(expired)
		}
		s.metrics.SetProposalsPending(remaining)
	}
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

func errNotFound(id string) error {
	return fault.NewNotFound("proposal " + id + " not found, expired, or already consumed")
}

// clone deep-copies the slices a caller could otherwise alias.
func clone(p Proposal) Proposal {
	out := p
	out.Changes = make([]ChangeDescriptor, len(p.Changes))
	copy(out.Changes, p.Changes)
	if p.ConsumedAt != nil {
		t := *p.ConsumedAt
		out.ConsumedAt = &t
	}
	return out
}
