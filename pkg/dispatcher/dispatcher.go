// Package dispatcher routes tool calls to their implementation after
// resolving the active store and gating checkout tools on the store's
// checkout capability.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/checkout"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/negotiator"
	"github.com/agent-protocol/ucp-shopper/pkg/observability"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
	"github.com/agent-protocol/ucp-shopper/pkg/tools"
)

// User-facing messages for failures whose details stay in the logs.
const (
	MsgNoCheckout       = "A Checkout has not yet been created."
	MsgRetryLater       = "Sorry, something went wrong, please try again later."
	MsgPaymentRetry     = "Sorry, there was an error completing the checkout, please try again."
	MsgRequestCancelled = "The request was cancelled or timed out, please try again."
)

// Dispatcher is safe for concurrent use. Calls for the same session must be
// serialized by the host.
type Dispatcher struct {
	reg     *registry.Registry
	tools   *tools.Toolset
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer sets the tracer. A default tracer on the global provider is
// used otherwise.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a dispatcher over the given tools.
func New(reg *registry.Registry, toolset *tools.Toolset, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:    reg,
		tools:  toolset,
		logger: slog.Default(),
		tracer: observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the store registry.
func (d *Dispatcher) Registry() *registry.Registry { return d.reg }

// Declarations returns the function declarations of every tool.
func (d *Dispatcher) Declarations() []*core.FunctionDeclaration {
	return d.tools.Declarations()
}

// ResolveStore returns the session's active store, or the negotiated default
// when none is set or the stored id no longer names a registered store.
func (d *Dispatcher) ResolveStore(sess core.SessionContext) string {
	if id, ok := sess.ActiveStoreID(); ok && d.reg.Has(id) {
		return id
	}
	decision, reason := negotiator.ChooseDefaultWithReason(d.reg)
	d.logger.Debug("default store resolved",
		slog.String("store_id", decision.SelectedStoreID),
		slog.String("reason", reason))
	return decision.SelectedStoreID
}

// Invoke runs tool name with args for the caller session sess. It never
// returns an error: every failure becomes a user-safe Result.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any, sess core.SessionContext) core.Result {
	start := time.Now()
	storeID := d.ResolveStore(sess)

	ctx, span := d.tracer.StartToolSpan(ctx, name, sess.SessionID(), storeID)
	res, err := d.invoke(ctx, name, args, sess, storeID)

	d.metrics.RecordInvocation(name, res.Outcome.String(), time.Since(start))
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	d.tracer.EndToolSpan(span, res.Outcome.String(), res.Outcome == core.OutcomeError, detail)

	d.logger.Info("tool invoked",
		slog.String("tool", name),
		slog.String("session_id", sess.SessionID()),
		slog.String("store_id", storeID),
		slog.String("status", string(res.Status())),
		slog.Duration("elapsed", time.Since(start)))
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any, sess core.SessionContext, storeID string) (core.Result, error) {
	tool, ok := d.tools.Lookup(name)
	if !ok {
		err := core.NotFoundf("tool %q", name)
		return core.Failure(fmt.Sprintf("Unknown tool '%s'.", name)), err
	}

	if tool.RequiresCheckout() {
		if decision := d.gate(name, storeID); decision != nil {
			return core.Denied(*decision, storeID), nil
		}
	}

	toolCtx := core.NewToolContext(sess, storeID)
	res, err := d.run(ctx, tool, toolCtx, args)
	d.afterCall(sess, storeID, res, err)
	if err != nil {
		return d.classify(name, storeID, err), err
	}
	return res, nil
}

// gate computes the capability decision for a checkout tool and logs it.
func (d *Dispatcher) gate(tool, storeID string) *core.StoreDecision {
	decision, reason := negotiator.RequireCheckoutWithReason(d.reg, storeID)
	if decision == nil {
		reason = negotiator.ReasonSupportsCheckout
	}
	d.metrics.RecordDecision(storeID, reason)

	recommended := ""
	if decision != nil {
		recommended = decision.Recommended(storeID)
	}
	d.logger.Info("store decision",
		slog.String("tool", tool),
		slog.String("store_id", storeID),
		slog.String("capability", string(core.CapabilityCheckout)),
		slog.Bool("allowed", decision == nil),
		slog.String("recommended", recommended),
		slog.String("reason", reason))
	return decision
}

// run calls the tool, converting a panic into an internal fault.
func (d *Dispatcher) run(ctx context.Context, tool core.BaseTool, toolCtx *core.ToolContext, args map[string]any) (res core.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordPanic()
			d.logger.Error("tool panicked",
				slog.String("tool", tool.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res = core.Result{}
			err = core.Internalf("panic in tool %s: %v", tool.Name(), r)
		}
	}()
	return tool.Run(ctx, toolCtx, args)
}

// afterCall keeps the session's checkout mirror and payment state in step
// with the manager after a call.
func (d *Dispatcher) afterCall(sess core.SessionContext, storeID string, res core.Result, err error) {
	var adapterErr *core.AdapterError
	switch {
	case errors.Is(err, checkout.ErrNoActiveCheckout):
		sess.SetCheckoutID(storeID, "")
	case errors.As(err, &adapterErr):
		sess.SetPaymentState(nil)
		result := "failed"
		if adapterErr.Transient {
			result = "error"
		}
		d.metrics.RecordPayment(result)
	case err == nil:
		c, ok := res.Payload.(*checkout.Checkout)
		if !ok || c == nil {
			return
		}
		if c.Status.IsTerminal() {
			sess.SetCheckoutID(c.StoreID, "")
			sess.SetPaymentState(nil)
			d.metrics.RecordPayment("completed")
			return
		}
		sess.SetCheckoutID(c.StoreID, c.ID)
	}
}

// classify converts an error into a user-safe result. Expected outcomes are
// logged at info level; internal and transient faults at error level with
// their detail, which is never shown to the caller.
func (d *Dispatcher) classify(tool, storeID string, err error) core.Result {
	var (
		denied     *core.CapabilityDeniedError
		more       *core.NeedsMoreInfoError
		adapterErr *core.AdapterError
	)
	attrs := []any{slog.String("tool", tool), slog.String("store_id", storeID)}

	switch {
	case errors.As(err, &denied):
		d.logger.Info("checkout denied", append(attrs, slog.String("recommended", denied.Decision.Recommended(storeID)))...)
		return core.Denied(denied.Decision, storeID)

	case errors.As(err, &more):
		d.logger.Info("more information required", append(attrs, slog.Any("missing", more.Missing))...)
		return core.NeedsMoreInfo(more.Error(), more.Missing)

	case errors.As(err, &adapterErr):
		if adapterErr.Transient {
			d.logger.Error("payment adapter failure", append(attrs, slog.String("error", err.Error()))...)
			return core.Failure(MsgPaymentRetry)
		}
		d.logger.Info("payment not completed", append(attrs, slog.String("reason", adapterErr.Reason))...)
		return core.Failure(adapterErr.Reason)

	case errors.Is(err, checkout.ErrNoActiveCheckout):
		return core.Failure(MsgNoCheckout)

	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrInvalidArgument):
		d.logger.Info("tool rejected arguments", append(attrs, slog.String("error", err.Error()))...)
		return core.Failure(core.Cause(err))

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.logger.Warn("tool call cancelled", append(attrs, slog.String("error", err.Error()))...)
		return core.Failure(MsgRequestCancelled)

	default:
		d.logger.Error("tool failed", append(attrs, slog.String("error", err.Error()))...)
		return core.Failure(MsgRetryLater)
	}
}
