package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// CallObserver receives per-call outcomes for metrics.
type CallObserver interface {
	ObserveServiceCall(service, method, outcome string)
}

// proxyCore is the shared invoke path behind the typed service proxies.
// Reads are retried; mutations are retried and, when still failing with a
// connectivity-class error, parked in the offline queue.
type proxyCore struct {
	service string
	retrier *Retrier
	queue   Queue
	log     *telemetry.Logger
	metrics CallObserver
	tracer  *telemetry.Tracer
}

func newProxyCore(service string, retrier *Retrier, queue Queue, log *telemetry.Logger) proxyCore {
	if retrier == nil {
		retrier = NewRetrier()
	}
	if log == nil {
		log = telemetry.NopLogger()
	}
	return proxyCore{
		service: service,
		retrier: retrier,
		queue:   queue,
		log:     log.WithField("service", service),
	}
}

// read invokes a non-mutating call with retry. Failures are translated but
// never queued.
func (p *proxyCore) read(ctx context.Context, method string, call func(ctx context.Context) error) error {
	ctx, end := p.startSpan(ctx, method)

	err := p.retrier.Do(ctx, call)
	if err == nil {
		end(nil)
		p.observe(method, "ok")
		return nil
	}

	p.observe(method, "failed")
	err = p.translate(err, method)
	end(err)
	return err
}

// mutate invokes a mutating call with retry. If retries exhaust on a
// transient failure and the caller has not cancelled, the call is encoded
// into the offline queue and a QueuedError is returned.
func (p *proxyCore) mutate(ctx context.Context, method string, queueArgs []any, call func(ctx context.Context) error) error {
	ctx, end := p.startSpan(ctx, method)
	err := p.doMutate(ctx, method, queueArgs, call)
	end(err)
	return err
}

func (p *proxyCore) doMutate(ctx context.Context, method string, queueArgs []any, call func(ctx context.Context) error) error {
	err := p.retrier.Do(ctx, call)
	if err == nil {
		p.observe(method, "applied")
		return nil
	}

	// A cancelled caller must never have its operation queued behind its
	// back; the retry loop may have been cut short.
	if ctx.Err() != nil {
		p.observe(method, "failed")
		return p.translate(err, method)
	}

	if fault.Classify(err) != fault.ClassTransient {
		p.observe(method, "failed")
		return p.translate(err, method)
	}

	if p.queue == nil {
		p.observe(method, "failed")
		return p.translate(err, method)
	}

	op, encErr := NewQueuedOperation(p.service, method, queueArgs...)
	if encErr != nil {
		p.observe(method, "failed")
		return fault.NewPermanent("encode operation for offline queue", encErr).
			WithService(p.service).WithOperation(method).WithCode(fault.CodeInternal)
	}

	if appendErr := p.queue.Append(ctx, op); appendErr != nil {
		p.observe(method, "failed")
		return p.translate(err, method)
	}

	p.log.WithError(err).WithField("operation_id", op.ID).
		Warnf("%s.%s queued after exhausted retries", p.service, method)
	p.observe(method, "queued")
	return &QueuedError{OperationID: op.ID, Service: p.service, Method: method}
}

// translate converts a collaborator failure into the core taxonomy, keeping
// an existing classification and attaching service/operation context.
func (p *proxyCore) translate(err error, method string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		if fe.Service == "" {
			fe.Service = p.service
		}
		if fe.Operation == "" {
			fe.Operation = method
		}
		return err
	}

	msg := fmt.Sprintf("%s failed", method)
	var out *fault.Error
	switch fault.Classify(err) {
	case fault.ClassTransient:
		out = fault.NewTransient(msg, err).WithCode(fault.CodeUnavailable)
	case fault.ClassConflict:
		out = fault.NewConflict(msg, err)
	default:
		out = fault.NewPermanent(msg, err)
	}
	return out.WithService(p.service).WithOperation(method)
}

// startSpan opens a per-call span when a tracer is attached. The returned
// func records the final error and ends the span.
func (p *proxyCore) startSpan(ctx context.Context, method string) (context.Context, func(error)) {
	if p.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := p.tracer.StartServiceSpan(ctx, p.service, method)
	return ctx, func(err error) {
		telemetry.RecordError(span, err)
		span.End()
	}
}

func (p *proxyCore) observe(method, outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveServiceCall(p.service, method, outcome)
	}
}
