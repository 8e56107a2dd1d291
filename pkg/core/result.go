package core

import "encoding/json"

// Status is the wire value of a tool result's "status" field.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusRequiresMoreInfo Status = "requires_more_info"
)

// Outcome tags a Result so callers can switch on it exhaustively instead of
// inspecting string keys.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDenied
	OutcomeNeedsMoreInfo
	OutcomeError
)

// String returns a short name for logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDenied:
		return "denied"
	case OutcomeNeedsMoreInfo:
		return "needs_more_info"
	default:
		return "error"
	}
}

// Payload keys understood by UCP-aware clients.
const (
	PayloadCheckout       = "a2a.ucp.checkout"
	PayloadProductResults = "a2a.product_results"
	PayloadStores         = "stores"
)

// Result is the structured response of a tool invocation.
type Result struct {
	Outcome Outcome

	Message string

	// Explanation and RecommendedStore are set on denials and store decisions.
	Explanation      string
	RecommendedStore string

	// Missing lists the fields a NeedsMoreInfo result is waiting for.
	Missing []string

	// PayloadKey names the field Payload is rendered under.
	PayloadKey string
	Payload    any

	// Extra holds additional tool-specific top level fields.
	Extra map[string]any
}

// Success returns a successful result carrying payload under key.
func Success(key string, payload any) Result {
	return Result{Outcome: OutcomeSuccess, PayloadKey: key, Payload: payload}
}

// SuccessMessage returns a successful result with only a message.
func SuccessMessage(message string) Result {
	return Result{Outcome: OutcomeSuccess, Message: message}
}

// Denied returns the structured denial for a blocked checkout call.
func Denied(decision StoreDecision, currentStoreID string) Result {
	return Result{
		Outcome:          OutcomeDenied,
		Message:          "Cannot complete checkout with the selected merchant.",
		Explanation:      decision.Explanation,
		RecommendedStore: decision.Recommended(currentStoreID),
	}
}

// NeedsMoreInfo returns a result asking the caller for another round trip.
func NeedsMoreInfo(message string, missing []string) Result {
	return Result{Outcome: OutcomeNeedsMoreInfo, Message: message, Missing: missing}
}

// Failure returns an error result with a user-safe message.
func Failure(message string) Result {
	return Result{Outcome: OutcomeError, Message: message}
}

// Status maps the outcome to its wire status.
func (r Result) Status() Status {
	switch r.Outcome {
	case OutcomeSuccess:
		return StatusSuccess
	case OutcomeNeedsMoreInfo:
		return StatusRequiresMoreInfo
	default:
		return StatusError
	}
}

// ToMap renders the result in the flat shape tool callers consume.
func (r Result) ToMap() map[string]any {
	m := make(map[string]any, 4+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	m["status"] = string(r.Status())
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Explanation != "" {
		m["explanation"] = r.Explanation
	}
	if r.Outcome == OutcomeDenied {
		if r.RecommendedStore != "" {
			m["recommended_store"] = r.RecommendedStore
		} else {
			m["recommended_store"] = nil
		}
	} else if r.RecommendedStore != "" {
		m["recommended_store"] = r.RecommendedStore
	}
	if len(r.Missing) > 0 {
		m["missing"] = r.Missing
	}
	if r.PayloadKey != "" && r.Payload != nil {
		m[r.PayloadKey] = r.Payload
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}
