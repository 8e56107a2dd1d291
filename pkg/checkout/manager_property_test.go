package checkout

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

func lineItemSet(c *Checkout) map[string]int {
	set := make(map[string]int, len(c.LineItems))
	for _, li := range c.LineItems {
		set[li.Item.ID] = li.Quantity
	}
	return set
}

func sameSet(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestCheckoutProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	productGen := gen.OneConstOf("SKU1", "SKU2")
	ctx := context.Background()

	properties.Property("add then remove of a new product restores the line items", prop.ForAll(
		func(seedQty int, product string, qty int) bool {
			m := newTestManager(t, nil)
			key := Key{SessionID: "p", StoreID: "b"}
			// Seed with the other product so the checkout exists beforehand.
			other := "SKU1"
			if product == "SKU1" {
				other = "SKU2"
			}
			before, err := m.AddItem(ctx, key, other, seedQty)
			if err != nil {
				return false
			}
			if _, err := m.AddItem(ctx, key, product, qty); err != nil {
				return false
			}
			after, err := m.RemoveItem(ctx, key, product)
			if err != nil {
				return false
			}
			return sameSet(lineItemSet(before), lineItemSet(after)) && before.Totals == after.Totals
		},
		gen.IntRange(1, 20),
		productGen,
		gen.IntRange(1, 20),
	))

	properties.Property("update to zero equals remove", prop.ForAll(
		func(q1, q2 int) bool {
			build := func() *Manager {
				m := newTestManager(t, nil)
				key := Key{SessionID: "p", StoreID: "b"}
				_, _ = m.AddItem(ctx, key, "SKU1", q1)
				_, _ = m.AddItem(ctx, key, "SKU2", q2)
				return m
			}
			key := Key{SessionID: "p", StoreID: "b"}
			viaUpdate, err := build().UpdateQuantity(ctx, key, "SKU1", 0)
			if err != nil {
				return false
			}
			viaRemove, err := build().RemoveItem(ctx, key, "SKU1")
			if err != nil {
				return false
			}
			return sameSet(lineItemSet(viaUpdate), lineItemSet(viaRemove)) &&
				viaUpdate.Totals == viaRemove.Totals &&
				viaUpdate.Status == viaRemove.Status
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
	))

	properties.Property("mutations against a store without checkout are denied and create nothing", prop.ForAll(
		func(op int, product string, qty int) bool {
			m := newTestManager(t, nil)
			key := Key{SessionID: "p", StoreID: "a"}
			var err error
			switch op {
			case 0:
				_, err = m.AddItem(ctx, key, product, qty)
			case 1:
				_, err = m.RemoveItem(ctx, key, product)
			case 2:
				_, err = m.UpdateQuantity(ctx, key, product, qty-10)
			default:
				_, err = m.AttachDeliveryAndBuyer(ctx, key, validAddress(), "")
			}
			denied, ok := err.(*core.CapabilityDeniedError)
			return ok && denied.Decision.SelectedStoreID == "b" && m.Len() == 0
		},
		gen.IntRange(0, 3),
		productGen,
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
