package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/scheduling"
	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// Default working window for gap detection.
const (
	DefaultDayStartHour = 9
	DefaultDayEndHour   = 17
)

// Services bundles the collaborator interfaces a workflow plans against and
// mutates through. Callers wire the resilience proxies here.
type Services struct {
	Calendar services.Calendar
	Tasks    services.Tasks
	Mail     services.Mail
}

// Observer receives workflow and proposal lifecycle events for metrics.
type Observer interface {
	ObserveProposalCreated(workflow string)
	ObserveProposalConsumed(workflow string)
	ObserveProposalRejected(workflow string)
	ObserveWorkflow(workflow, phase, outcome string)
	ObserveChangeApplied(workflow, outcome string)
}

// DayWindow bounds the schedulable part of a day, in local hours.
type DayWindow struct {
	StartHour int
	EndHour   int
}

// Orchestrator runs the two-phase protocol for every workflow type. Each
// invocation is stateless except for what it reads from the proposal store.
type Orchestrator struct {
	store    *proposal.Store
	svcs     Services
	log      *telemetry.Logger
	tracer   *telemetry.Tracer
	validate *validator.Validate
	metrics  Observer
	window   DayWindow
	now      func() time.Time
}

// New creates an orchestrator over the given store and services.
func New(store *proposal.Store, svcs Services, log *telemetry.Logger) *Orchestrator {
	if log == nil {
		log = telemetry.NopLogger()
	}
	return &Orchestrator{
		store:    store,
		svcs:     svcs,
		log:      log.NewComponentLogger("workflow"),
		validate: validator.New(),
		window:   DayWindow{StartHour: DefaultDayStartHour, EndHour: DefaultDayEndHour},
		now:      time.Now,
	}
}

// WithTracer attaches a tracer for workflow spans.
func (o *Orchestrator) WithTracer(t *telemetry.Tracer) *Orchestrator {
	o.tracer = t
	return o
}

// WithObserver attaches a metrics observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.metrics = obs
	return o
}

// WithWindow overrides the default 09:00-17:00 working window.
func (o *Orchestrator) WithWindow(w DayWindow) *Orchestrator {
	if w.StartHour >= 0 && w.EndHour > w.StartHour && w.EndHour <= 24 {
		o.window = w
	}
	return o
}

// WithClock overrides the time source for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// planner is the workflow-specific half of the protocol: validation of the
// target fields and the read-only computation of the proposed changes.
type planner interface {
	workflowType() string
	validateTarget(req Request) error
	plan(ctx context.Context, req Request) ([]proposal.ChangeDescriptor, string, error)
}

// ScheduleDay plans (or confirms) a full day of focus blocks for the
// user's pending tasks.
func (o *Orchestrator) ScheduleDay(ctx context.Context, req Request) Response {
	return o.run(ctx, &scheduleDayPlanner{o: o}, req)
}

// FillBlock plans (or confirms) task assignments into one existing block.
func (o *Orchestrator) FillBlock(ctx context.Context, req Request) Response {
	return o.run(ctx, &fillBlockPlanner{o: o}, req)
}

// TriageEmails plans (or confirms) inbox cleanup actions.
func (o *Orchestrator) TriageEmails(ctx context.Context, req Request) Response {
	return o.run(ctx, &triagePlanner{o: o}, req)
}

// run is the shared two-phase state machine.
func (o *Orchestrator) run(ctx context.Context, p planner, req Request) Response {
	wt := p.workflowType()

	if err := o.validateRequest(p, req); err != nil {
		o.observeWorkflow(wt, PhaseProposal, "invalid")
		return failure(PhaseProposal, err)
	}

	if req.Confirmation == nil {
		return o.propose(ctx, p, req)
	}
	return o.execute(ctx, p, req)
}

func (o *Orchestrator) validateRequest(p planner, req Request) error {
	if err := o.validate.Struct(req); err != nil {
		return fault.NewValidation(fmt.Sprintf("invalid request: %v", err), err)
	}
	if err := p.validateTarget(req); err != nil {
		return err
	}
	return nil
}

// propose is phase 1: read state, compute changes, store the proposal.
// It must not mutate any collaborator state.
func (o *Orchestrator) propose(ctx context.Context, p planner, req Request) Response {
	wt := p.workflowType()
	ctx, span := o.startSpan(ctx, wt, PhaseProposal, req.UserID)
	defer span.end()

	log := o.log.WithWorkflow(wt).WithUser(req.UserID)

	changes, summary, err := p.plan(ctx, req)
	if err != nil {
		log.WithError(err).Error("planning failed")
		span.recordError(err)
		o.observeWorkflow(wt, PhaseProposal, "failed")
		return failure(PhaseProposal, err)
	}

	if len(changes) == 0 {
		log.Info("nothing to propose")
		o.observeWorkflow(wt, PhaseProposal, "empty")
		return Response{
			Success: true,
			Phase:   PhaseProposal,
			Summary: summary,
		}
	}

	prop := o.store.Create(wt, o.ownerFor(req), changes, summary)
	log.WithProposalID(prop.ID).Infof("proposed %d changes", len(changes))
	if o.metrics != nil {
		o.metrics.ObserveProposalCreated(wt)
	}
	o.observeWorkflow(wt, PhaseProposal, "proposed")

	return Response{
		Success:    true,
		Phase:      PhaseProposal,
		ProposalID: prop.ID,
		Changes:    prop.Changes,
		Summary:    summary,
	}
}

// execute is phase 2: resolve the proposal, consume it, apply the effective
// selection item by item. A single item's failure never aborts the batch.
func (o *Orchestrator) execute(ctx context.Context, p planner, req Request) Response {
	wt := p.workflowType()
	ctx, span := o.startSpan(ctx, wt, PhaseCompleted, req.UserID)
	defer span.end()

	conf := req.Confirmation
	owner := o.ownerFor(req)
	log := o.log.WithWorkflow(wt).WithUser(req.UserID)

	id := conf.ProposalID
	if id == "" {
		latest, err := o.store.FindLatestByWorkflow(owner, wt, req.Date)
		if err != nil {
			o.observeWorkflow(wt, PhaseCompleted, "stale")
			return failure(PhaseCompleted, staleProposal(err))
		}
		id = latest.ID
	}

	if !conf.Approved {
		if err := o.store.Delete(id, owner); err != nil {
			o.observeWorkflow(wt, PhaseCompleted, "stale")
			return failure(PhaseCompleted, err)
		}
		log.WithProposalID(id).Info("proposal rejected by user")
		if o.metrics != nil {
			o.metrics.ObserveProposalRejected(wt)
		}
		o.observeWorkflow(wt, PhaseCompleted, "cancelled")
		return Response{
			Success:    true,
			Phase:      PhaseCompleted,
			ProposalID: id,
			Cancelled:  true,
			Summary:    "proposal discarded, no changes applied",
		}
	}

	prop, err := o.store.Consume(id, owner)
	if err != nil {
		o.observeWorkflow(wt, PhaseCompleted, "stale")
		return failure(PhaseCompleted, staleProposal(err))
	}
	if o.metrics != nil {
		o.metrics.ObserveProposalConsumed(wt)
	}

	selection := effectiveSelection(prop, conf.ModifiedSelection)
	if len(selection) == 0 {
		log.WithProposalID(id).Info("confirmation selected no changes")
		o.observeWorkflow(wt, PhaseCompleted, "empty")
		return Response{
			Success:    true,
			Phase:      PhaseCompleted,
			ProposalID: id,
			Summary:    "no changes selected, nothing applied",
		}
	}

	results := make([]ChangeResult, 0, len(selection))
	applied, queued, failed := 0, 0, 0
	for _, change := range selection {
		res := o.applyChange(ctx, owner, change)
		switch res.Outcome {
		case OutcomeApplied:
			applied++
		case OutcomeQueued:
			queued++
		default:
			failed++
		}
		if o.metrics != nil {
			o.metrics.ObserveChangeApplied(wt, res.Outcome)
		}
		results = append(results, res)
	}

	log.WithProposalID(id).
		Infof("executed proposal: %d applied, %d queued, %d failed", applied, queued, failed)
	o.observeWorkflow(wt, PhaseCompleted, executionOutcome(applied, queued, failed))

	return Response{
		Success:    true,
		Phase:      PhaseCompleted,
		ProposalID: id,
		Results:    results,
		Summary:    fmt.Sprintf("%d applied, %d queued, %d failed", applied, queued, failed),
	}
}

// effectiveSelection resolves the change list to apply. A user-edited
// selection picks changes out of the stored proposal by id; ids the
// proposal never contained are dropped rather than executed, and the
// stored descriptor wins over whatever payload the caller resubmitted.
func effectiveSelection(prop *proposal.Proposal, modified []proposal.ChangeDescriptor) []proposal.ChangeDescriptor {
	if modified == nil {
		return prop.Changes
	}

	stored := make(map[string]proposal.ChangeDescriptor, len(prop.Changes))
	for _, c := range prop.Changes {
		stored[c.ID] = c
	}

	out := make([]proposal.ChangeDescriptor, 0, len(modified))
	for _, c := range modified {
		if orig, ok := stored[c.ID]; ok {
			out = append(out, orig)
		}
	}
	return out
}

func (o *Orchestrator) ownerFor(req Request) proposal.OwnerContext {
	return proposal.OwnerContext{
		UserID:  req.UserID,
		Date:    req.Date,
		BlockID: req.BlockID,
	}
}

func (o *Orchestrator) strategyFor(req Request) scheduling.Strategy {
	if req.Strategy.Valid() {
		return req.Strategy
	}
	return scheduling.StrategyMixed
}

// dayWindow returns the schedulable window for the request's date.
func (o *Orchestrator) dayWindow(req Request) (scheduling.Window, error) {
	day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return scheduling.Window{}, fault.NewValidation(fmt.Sprintf("invalid date %q", req.Date), err)
	}
	return scheduling.Window{
		Start: day.Add(time.Duration(o.window.StartHour) * time.Hour),
		End:   day.Add(time.Duration(o.window.EndHour) * time.Hour),
	}, nil
}

// staleProposal converts a store miss into the stale-proposal outcome that
// tells callers to re-run planning.
func staleProposal(err error) error {
	if fault.IsNotFound(err) {
		return fault.NewNotFound("proposal is stale or already confirmed, re-run planning").
			WithCode(fault.CodeStaleProposal)
	}
	return err
}

func executionOutcome(applied, queued, failed int) string {
	switch {
	case failed > 0:
		return "partial"
	case queued > 0:
		return "queued"
	default:
		return "applied"
	}
}

func (o *Orchestrator) observeWorkflow(workflow, phase, outcome string) {
	if o.metrics != nil {
		o.metrics.ObserveWorkflow(workflow, phase, outcome)
	}
}

// span is a small wrapper so the orchestrator can trace unconditionally.
type span struct {
	end         func()
	recordError func(err error)
}

func (o *Orchestrator) startSpan(ctx context.Context, workflowType, phase, userID string) (context.Context, span) {
	if o.tracer == nil {
		return ctx, span{end: func() {}, recordError: func(error) {}}
	}
	ctx, s := o.tracer.StartWorkflowSpan(ctx, workflowType, phase, userID)
	return ctx, span{
		end:         func() { s.End() },
		recordError: func(err error) { telemetry.RecordError(s, err) },
	}
}
