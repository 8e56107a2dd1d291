package checkout

// Status is the lifecycle state of a checkout session.
type Status string

const (
	StatusOpen                        Status = "open"
	StatusAwaitingPaymentInfo         Status = "awaiting_payment_info"
	StatusAwaitingPaymentConfirmation Status = "awaiting_payment_confirmation"
	StatusCompleted                   Status = "completed"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// AcceptsItemChanges reports whether line items may still be changed.
func (s Status) AcceptsItemChanges() bool {
	return s != StatusCompleted
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}
