package core

import (
	"encoding/json"
	"sync"
)

// State keys used in a session's state map.
const (
	StateKeySelectedStore = "shopper:selected_store_id"
	StateKeyCheckoutIDs   = "shopper:checkout_ids"
	StateKeyPayment       = "shopper:payment"
)

// SessionContext is the per-conversation store supplied by the host. The
// runtime needs only these fields and get/set semantics on them.
type SessionContext interface {
	// SessionID identifies the caller session.
	SessionID() string

	// ActiveStoreID returns the store the caller selected, if any.
	ActiveStoreID() (string, bool)

	// SetActiveStoreID records the caller's store selection.
	SetActiveStoreID(storeID string)

	// CheckoutID returns the checkout id mirrored for storeID, or "".
	CheckoutID(storeID string) string

	// SetCheckoutID mirrors the checkout id for storeID. An empty id clears it.
	SetCheckoutID(storeID, checkoutID string)

	// PaymentState returns the pending payment data, if the host supplied one.
	PaymentState() (*PaymentState, bool)

	// SetPaymentState stores pending payment data. nil clears it.
	SetPaymentState(state *PaymentState)
}

// StateContext implements SessionContext over a session state map, so any
// session service can back it. Values survive a JSON round trip.
type StateContext struct {
	mu      sync.Mutex
	session *Session
}

var _ SessionContext = (*StateContext)(nil)

// NewStateContext wraps session. Writes go directly into session.State.
func NewStateContext(session *Session) *StateContext {
	if session.State == nil {
		session.State = make(map[string]any)
	}
	return &StateContext{session: session}
}

// Session returns the wrapped session.
func (c *StateContext) Session() *Session {
	return c.session
}

// SessionID returns the wrapped session's id.
func (c *StateContext) SessionID() string {
	return c.session.ID
}

// ActiveStoreID returns the selected store id.
func (c *StateContext) ActiveStoreID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.session.GetState(StateKeySelectedStore)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// SetActiveStoreID records the selected store id.
func (c *StateContext) SetActiveStoreID(storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.SetState(StateKeySelectedStore, storeID)
}

// CheckoutID returns the mirrored checkout id for storeID.
func (c *StateContext) CheckoutID(storeID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkoutIDs()[storeID]
}

// SetCheckoutID mirrors the checkout id for storeID; "" removes the entry.
func (c *StateContext) SetCheckoutID(storeID, checkoutID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.checkoutIDs()
	if checkoutID == "" {
		delete(ids, storeID)
	} else {
		ids[storeID] = checkoutID
	}
	c.session.SetState(StateKeyCheckoutIDs, ids)
}

// checkoutIDs returns a fresh copy of the mapping, tolerating the
// map[string]any form produced by a JSON round trip.
func (c *StateContext) checkoutIDs() map[string]string {
	ids := make(map[string]string)
	v, ok := c.session.GetState(StateKeyCheckoutIDs)
	if !ok {
		return ids
	}
	switch m := v.(type) {
	case map[string]string:
		for k, id := range m {
			ids[k] = id
		}
	case map[string]any:
		for k, raw := range m {
			if id, ok := raw.(string); ok && id != "" {
				ids[k] = id
			}
		}
	}
	return ids
}

// PaymentState returns the pending payment data.
func (c *StateContext) PaymentState() (*PaymentState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.session.GetState(StateKeyPayment)
	if !ok || v == nil {
		return nil, false
	}
	switch p := v.(type) {
	case *PaymentState:
		return p, p != nil
	case PaymentState:
		return &p, true
	default:
		var state PaymentState
		if !decodeInto(v, &state) {
			return nil, false
		}
		return &state, true
	}
}

// SetPaymentState stores pending payment data; nil removes it.
func (c *StateContext) SetPaymentState(state *PaymentState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state == nil {
		c.session.DeleteState(StateKeyPayment)
		return
	}
	c.session.SetState(StateKeyPayment, *state)
}

// decodeInto converts a generic JSON value (map[string]any) into dst.
func decodeInto(v any, dst any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
