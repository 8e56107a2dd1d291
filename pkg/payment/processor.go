// Package payment defines the payment adapter boundary used to authorize a
// checkout's payment instrument.
package payment

import (
	"context"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Status is the processor's verdict on a payment.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// Request is a single payment authorization request.
type Request struct {
	Instrument  core.PaymentInstrument
	RiskSignals map[string]string

	Amount   int64
	Currency string

	// IdempotencyKey identifies the checkout being paid. Processors backed by
	// a real network must forward it so a retried request cannot charge twice.
	IdempotencyKey string
}

// Outcome is the processor's response.
type Outcome struct {
	Status Status

	// Reason explains a failed or pending outcome in user-presentable terms.
	Reason string

	// Reference is the processor's transaction reference on completion.
	Reference string
}

// Completed reports whether the payment went through.
func (o *Outcome) Completed() bool {
	return o != nil && o.Status == StatusCompleted
}

// Processor authorizes payments.
//
// Implementations may be network calls that take time and may be
// non-idempotent unless Request.IdempotencyKey is honoured. Process must
// return promptly once ctx is done. A returned error means the processor
// could not be reached or answered nonsensically; a declined payment is an
// Outcome with StatusFailed and a nil error.
type Processor interface {
	Process(ctx context.Context, req *Request) (*Outcome, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, req *Request) (*Outcome, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, req *Request) (*Outcome, error) {
	return f(ctx, req)
}
