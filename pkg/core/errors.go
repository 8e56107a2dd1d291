package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by all components.
var (
	// ErrNotFound is returned for unknown stores, checkouts, products and tools.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed quantities, addresses or emails.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal marks catalog corruption and other unexpected faults.
	ErrInternal = errors.New("internal fault")
)

// CapabilityDeniedError is returned when a checkout operation targets a store
// without the checkout capability. It always carries the negotiator decision.
type CapabilityDeniedError struct {
	StoreID  string
	Decision StoreDecision
}

// Error implements the error interface for CapabilityDeniedError
func (e *CapabilityDeniedError) Error() string {
	return fmt.Sprintf("checkout not supported by store %q: %s", e.StoreID, e.Decision.Explanation)
}

// NeedsMoreInfoError is not a failure: the workflow needs another round trip
// with the listed fields before it can continue.
type NeedsMoreInfoError struct {
	Missing []string
	Message string
}

// Error implements the error interface for NeedsMoreInfoError
func (e *NeedsMoreInfoError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "more information required: " + strings.Join(e.Missing, ", ")
}

// AdapterError reports a payment processor rejection or fault. Transient
// errors (timeouts, transport failures) are safe for the caller to retry.
type AdapterError struct {
	Reason    string
	Transient bool
	Err       error
}

// Error implements the error interface for AdapterError
func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment adapter: %s: %v", e.Reason, e.Err)
	}
	return "payment adapter: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *AdapterError) Unwrap() error { return e.Err }

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Internalf wraps ErrInternal with a formatted message.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInternal)
}

// Cause strips the sentinel suffix added by the helpers above so the message
// can be shown to a user.
func Cause(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrNotFound, ErrInvalidArgument, ErrInternal} {
		msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	}
	return msg
}
