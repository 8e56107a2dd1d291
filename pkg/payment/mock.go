package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token prefixes that steer the mock processor.
const (
	TokenPrefixFail    = "fail"
	TokenPrefixPending = "pending"
	TokenPrefixError   = "error"
	TokenPrefixHang    = "hang"
)

// ErrProcessorUnavailable is returned by the mock for "error" tokens.
var ErrProcessorUnavailable = errors.New("payment processor unavailable")

// MockProcessor is a deterministic stand-in for a payment processor.
// Instruments whose token starts with "fail" are declined, "pending" stay
// pending, "error" fail with a transport error, and "hang" block until the
// context is done. Everything else completes.
type MockProcessor struct {
	// Latency is added to every request. It honours context cancellation.
	Latency time.Duration

	mu       sync.Mutex
	requests []Request
}

// NewMockProcessor creates a mock processor with the given simulated latency.
func NewMockProcessor(latency time.Duration) *MockProcessor {
	return &MockProcessor{Latency: latency}
}

// Process implements Processor.
func (m *MockProcessor) Process(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil {
		return nil, errors.New("nil payment request")
	}

	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	token := strings.ToLower(req.Instrument.Token)

	if strings.HasPrefix(token, TokenPrefixHang) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	switch {
	case strings.HasPrefix(token, TokenPrefixFail):
		return &Outcome{Status: StatusFailed, Reason: "Payment was declined by the card issuer."}, nil
	case strings.HasPrefix(token, TokenPrefixPending):
		return &Outcome{Status: StatusPending, Reason: "Payment is pending additional verification."}, nil
	case strings.HasPrefix(token, TokenPrefixError):
		return nil, fmt.Errorf("instrument %s: %w", req.Instrument.ID, ErrProcessorUnavailable)
	}

	return &Outcome{Status: StatusCompleted, Reference: "txn_" + uuid.NewString()}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockProcessor) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
