package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/ucp-shopper/pkg/catalog"
	"github.com/agent-protocol/ucp-shopper/pkg/checkout"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/payment"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

type shopFixture struct {
	tools   *Toolset
	session *core.StateContext
}

func newShopFixture(t *testing.T) *shopFixture {
	t.Helper()
	reg, err := registry.DefaultRegistry()
	require.NoError(t, err)
	mgr := checkout.NewManager(reg, payment.NewMockProcessor(0), checkout.DefaultOptions())
	ts, err := NewToolset(NewShopTools(&Shop{Registry: reg, Checkout: mgr})...)
	require.NoError(t, err)
	return &shopFixture{
		tools:   ts,
		session: core.NewStateContext(core.NewSession("sess-1", "shopper", "user-1")),
	}
}

func (f *shopFixture) run(t *testing.T, name, storeID string, args map[string]any) (core.Result, error) {
	t.Helper()
	tool, ok := f.tools.Lookup(name)
	require.True(t, ok, name)
	return tool.Run(context.Background(), core.NewToolContext(f.session, storeID), args)
}

func TestShopToolSurface(t *testing.T) {
	f := newShopFixture(t)
	gated := map[string]bool{}
	for _, tool := range f.tools.Tools() {
		gated[tool.Name()] = tool.RequiresCheckout()
	}
	assert.Equal(t, map[string]bool{
		ListStores:            false,
		SelectStore:           false,
		SearchShoppingCatalog: false,
		AddToCheckout:         true,
		RemoveFromCheckout:    true,
		UpdateCheckout:        true,
		GetCheckout:           true,
		UpdateCustomerDetails: true,
		StartPayment:          true,
		CompleteCheckout:      true,
	}, gated)
}

func TestListStores(t *testing.T) {
	f := newShopFixture(t)
	res, err := f.run(t, ListStores, "cafe_con_alma", nil)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeSuccess, res.Outcome)
	stores := res.Payload.([]StoreListing)
	require.Len(t, stores, 2)
	assert.Equal(t, "tierra_de_cafe", stores[0].ID)
	assert.False(t, stores[0].SupportsCheckout)
	assert.True(t, stores[1].SupportsCheckout)
	assert.Equal(t, "cafe_con_alma", res.Extra["recommended_default_store"])
	assert.Contains(t, res.Explanation, "Defaulting to 'cafe_con_alma'")
}

func TestSelectStore(t *testing.T) {
	f := newShopFixture(t)

	res, err := f.run(t, SelectStore, "", map[string]any{"store_id": "tierra_de_cafe"})
	require.NoError(t, err)
	assert.Equal(t, "Switched store to 'tierra_de_cafe' (search-only; checkout not supported)", res.Message)
	id, ok := f.session.ActiveStoreID()
	require.True(t, ok)
	assert.Equal(t, "tierra_de_cafe", id)

	res, err = f.run(t, SelectStore, "", map[string]any{"store_id": AutoStoreID})
	require.NoError(t, err)
	assert.Equal(t, "cafe_con_alma", res.Extra["store_id"])
	assert.Equal(t, true, res.Extra["supports_ucp_checkout"])

	_, err = f.run(t, SelectStore, "", map[string]any{"store_id": "ghost"})
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "Unknown store 'ghost'. Available: tierra_de_cafe, cafe_con_alma", core.Cause(err))

	id, _ = f.session.ActiveStoreID()
	assert.Equal(t, "cafe_con_alma", id)
}

func TestSearchTool(t *testing.T) {
	f := newShopFixture(t)
	res, err := f.run(t, SearchShoppingCatalog, "tierra_de_cafe", map[string]any{"query": "espresso"})
	require.NoError(t, err)
	assert.Equal(t, core.PayloadProductResults, res.PayloadKey)
	results := res.Payload.(*catalog.Results)
	require.Len(t, results.Products, 1)
	assert.Equal(t, "TDC-003", results.Products[0].ID)
}

func TestCheckoutToolsFlow(t *testing.T) {
	f := newShopFixture(t)
	const store = "cafe_con_alma"

	_, err := f.run(t, GetCheckout, store, nil)
	require.ErrorIs(t, err, checkout.ErrNoActiveCheckout)

	res, err := f.run(t, AddToCheckout, store, map[string]any{"product_id": "COFFEE-001"})
	require.NoError(t, err)
	c := res.Payload.(*checkout.Checkout)
	assert.Equal(t, 1, c.LineItems[0].Quantity)

	res, err = f.run(t, UpdateCheckout, store, map[string]any{"product_id": "COFFEE-001", "quantity": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3*1299), res.Payload.(*checkout.Checkout).Totals.Total)

	_, err = f.run(t, UpdateCheckout, store, map[string]any{"product_id": "COFFEE-001"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = f.run(t, StartPayment, store, nil)
	var more *core.NeedsMoreInfoError
	require.ErrorAs(t, err, &more)

	res, err = f.run(t, UpdateCustomerDetails, store, map[string]any{
		"first_name":       "Ada",
		"last_name":        "Lovelace",
		"street_address":   "1600 Amphitheatre Pkwy",
		"address_locality": "Mountain View",
		"address_region":   "CA",
		"postal_code":      "94043",
		"address_country":  nil,
		"email":            "ada@example.com",
	})
	require.NoError(t, err)
	c = res.Payload.(*checkout.Checkout)
	assert.Equal(t, checkout.StatusAwaitingPaymentConfirmation, c.Status)
	assert.Equal(t, "US", c.Delivery.Country)

	_, err = f.run(t, CompleteCheckout, store, nil)
	require.ErrorAs(t, err, &more)
	assert.Equal(t, checkout.MsgPaymentDataMissing, more.Message)

	f.session.SetPaymentState(&core.PaymentState{
		Instrument: core.PaymentInstrument{ID: "instr_1", Token: "tok_visa"},
	})
	res, err = f.run(t, CompleteCheckout, store, nil)
	require.NoError(t, err)
	c = res.Payload.(*checkout.Checkout)
	assert.Equal(t, checkout.StatusCompleted, c.Status)
	assert.Contains(t, res.Message, c.Order.ID)

	_, err = f.run(t, RemoveFromCheckout, store, map[string]any{"product_id": "COFFEE-001"})
	assert.ErrorIs(t, err, checkout.ErrNoActiveCheckout)
}

func TestCheckoutToolAgainstSearchOnlyStore(t *testing.T) {
	f := newShopFixture(t)
	_, err := f.run(t, AddToCheckout, "tierra_de_cafe", map[string]any{"product_id": "TDC-001", "quantity": 1})
	var denied *core.CapabilityDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "cafe_con_alma", denied.Decision.SelectedStoreID)
}
