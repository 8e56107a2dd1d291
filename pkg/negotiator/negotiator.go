// Package negotiator decides which store the agent should shop at based on
// the capabilities each store advertises. Functions here are pure: callers
// log the decisions they act on.
package negotiator

import (
	"fmt"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

// Reasons attached to decisions for logs and metrics.
const (
	ReasonSupportsCheckout   = "supports_ucp_checkout"
	ReasonNoCheckoutStore    = "no_store_supports_ucp_checkout"
	ReasonRejectedWithOption = "rejected_with_alternative"
	ReasonRejectedNoOption   = "rejected_no_alternative"
)

// ChooseDefault picks the first store in registry order that supports
// checkout, or the first store when none does. An empty registry yields a
// decision with no selected store.
func ChooseDefault(reg *registry.Registry) core.StoreDecision {
	d, _ := chooseDefault(reg)
	return d
}

// ChooseDefaultWithReason is ChooseDefault plus a machine readable reason.
func ChooseDefaultWithReason(reg *registry.Registry) (core.StoreDecision, string) {
	return chooseDefault(reg)
}

func chooseDefault(reg *registry.Registry) (core.StoreDecision, string) {
	stores := reg.List()
	if len(stores) == 0 {
		return core.StoreDecision{Explanation: "No stores are configured."}, ReasonNoCheckoutStore
	}
	if s := firstCompliant(stores); s != nil {
		return core.StoreDecision{
			SelectedStoreID: s.ID,
			Explanation: fmt.Sprintf(
				"Defaulting to '%s' because it exposes UCP checkout capabilities, "+
					"so I can complete purchases automatically.", s.ID),
		}, ReasonSupportsCheckout
	}
	fallback := stores[0].ID
	return core.StoreDecision{
		SelectedStoreID: fallback,
		Explanation: fmt.Sprintf(
			"Defaulting to '%s' because no store exposes UCP checkout capabilities.", fallback),
	}, ReasonNoCheckoutStore
}

// RequireCheckout returns nil when currentID names a checkout capable store.
// Otherwise it returns a blocking decision that recommends the first
// compliant alternative, or points back at currentID when there is none.
// The caller's active store is never changed.
func RequireCheckout(reg *registry.Registry, currentID string) *core.StoreDecision {
	d, _ := RequireCheckoutWithReason(reg, currentID)
	return d
}

// RequireCheckoutWithReason is RequireCheckout plus a machine readable reason.
// The reason is empty when the call is allowed.
func RequireCheckoutWithReason(reg *registry.Registry, currentID string) (*core.StoreDecision, string) {
	if reg.Supports(currentID, core.CapabilityCheckout) {
		return nil, ""
	}

	if s := firstCompliant(reg.List()); s != nil {
		return &core.StoreDecision{
			SelectedStoreID: s.ID,
			RejectedStoreID: currentID,
			Explanation: fmt.Sprintf(
				"I cannot complete checkout with '%s' because it does not expose "+
					"UCP checkout capabilities (agents cannot reliably discover shipping/payment or "+
					"finish checkout). I will use '%s' instead so I can complete the purchase automatically.",
				currentID, s.ID),
		}, ReasonRejectedWithOption
	}

	return &core.StoreDecision{
		SelectedStoreID: currentID,
		RejectedStoreID: currentID,
		Explanation: fmt.Sprintf(
			"I cannot complete checkout because '%s' does not support UCP checkout, "+
				"and no alternative store is UCP-compliant.", currentID),
	}, ReasonRejectedNoOption
}

func firstCompliant(stores []*registry.Store) *registry.Store {
	for _, s := range stores {
		if s.Supports(core.CapabilityCheckout) {
			return s
		}
	}
	return nil
}
