package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/agent-protocol/ucp-shopper/pkg/catalog"
	"github.com/agent-protocol/ucp-shopper/pkg/checkout"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/negotiator"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

// Tool names.
const (
	ListStores            = "list_stores"
	SelectStore           = "select_store"
	SearchShoppingCatalog = "search_shopping_catalog"
	AddToCheckout         = "add_to_checkout"
	RemoveFromCheckout    = "remove_from_checkout"
	UpdateCheckout        = "update_checkout"
	GetCheckout           = "get_checkout"
	UpdateCustomerDetails = "update_customer_details"
	StartPayment          = "start_payment"
	CompleteCheckout      = "complete_checkout"
)

// AutoStoreID asks select_store for the negotiated default store.
const AutoStoreID = "auto"

// Shop holds the components the shopping tools operate on.
type Shop struct {
	Registry *registry.Registry
	Checkout *checkout.Manager
}

type (
	noArgs struct{}

	selectStoreArgs struct {
		StoreID string `json:"store_id" description:"Store id to shop from, or \"auto\" for the recommended store."`
	}

	searchArgs struct {
		Query string `json:"query" description:"Query for performing product search."`
	}

	addArgs struct {
		ProductID string `json:"product_id" description:"Product ID or SKU."`
		Quantity  int    `json:"quantity" default:"1" description:"Quantity; defaults to 1 if not specified."`
	}

	removeArgs struct {
		ProductID string `json:"product_id" description:"Product ID or SKU."`
	}

	updateArgs struct {
		ProductID string `json:"product_id" description:"Product ID or SKU."`
		Quantity  int    `json:"quantity" description:"New quantity for the product. 0 removes it."`
	}

	customerArgs struct {
		FirstName       string `json:"first_name" description:"First name of the recipient."`
		LastName        string `json:"last_name" description:"Last name of the recipient."`
		StreetAddress   string `json:"street_address" description:"The street address. For example, 1600 Amphitheatre Pkwy."`
		AddressLocality string `json:"address_locality" description:"The locality in which the street address is."`
		AddressRegion   string `json:"address_region" description:"The region in which the locality is."`
		PostalCode      string `json:"postal_code" description:"The postal code. For example, 94043."`
		AddressCountry  string `json:"address_country,omitempty" description:"The country. Defaults to US."`
		ExtendedAddress string `json:"extended_address,omitempty" description:"The extended address of the postal address."`
		Email           string `json:"email,omitempty" description:"The email address of the recipient."`
	}
)

// StoreListing is one entry of the list_stores payload.
type StoreListing struct {
	registry.StoreInfo
	SupportsCheckout bool `json:"supports_ucp_checkout"`
}

// NewShopTools returns the shopping tools in their canonical order.
func NewShopTools(shop *Shop) []core.BaseTool {
	return []core.BaseTool{
		MustFunctionTool[noArgs](ListStores,
			"List available stores and whether they support agent checkout (UCP).",
			shop.listStores),
		MustFunctionTool[selectStoreArgs](SelectStore,
			"Select which store (merchant) this session is shopping from.",
			shop.selectStore),
		MustFunctionTool[searchArgs](SearchShoppingCatalog,
			"Search the product catalog of the active store for products that match the given query.",
			shop.search),
		MustFunctionTool[addArgs](AddToCheckout,
			"Add a product to the checkout session.",
			shop.add).Gated(),
		MustFunctionTool[removeArgs](RemoveFromCheckout,
			"Remove a product from the checkout session.",
			shop.remove).Gated(),
		MustFunctionTool[updateArgs](UpdateCheckout,
			"Update the quantity of a product in the checkout session.",
			shop.update).Gated(),
		MustFunctionTool[noArgs](GetCheckout,
			"Retrieve the current checkout session.",
			shop.get).Gated(),
		MustFunctionTool[customerArgs](UpdateCustomerDetails,
			"Add the delivery address and buyer email to the checkout, then start payment.",
			shop.updateCustomer).Gated(),
		MustFunctionTool[noArgs](StartPayment,
			"Ask for required information to proceed with the payment.",
			shop.startPayment).Gated(),
		MustFunctionTool[noArgs](CompleteCheckout,
			"Process the payment data to complete checkout.",
			shop.complete).Gated(),
	}
}

func (s *Shop) listStores(_ context.Context, _ *core.ToolContext, _ noArgs) (core.Result, error) {
	stores := s.Registry.List()
	items := make([]StoreListing, 0, len(stores))
	for _, st := range stores {
		items = append(items, StoreListing{
			StoreInfo:        st.Info(),
			SupportsCheckout: st.Supports(core.CapabilityCheckout),
		})
	}

	d := negotiator.ChooseDefault(s.Registry)
	res := core.Success(core.PayloadStores, items)
	res.Explanation = d.Explanation
	res.Extra = map[string]any{"recommended_default_store": d.SelectedStoreID}
	return res, nil
}

func (s *Shop) selectStore(_ context.Context, toolCtx *core.ToolContext, args selectStoreArgs) (core.Result, error) {
	storeID := strings.TrimSpace(args.StoreID)
	if storeID == AutoStoreID {
		storeID = negotiator.ChooseDefault(s.Registry).SelectedStoreID
	}

	store, err := s.Registry.Get(storeID)
	if err != nil {
		ids := make([]string, 0, s.Registry.Len())
		for _, st := range s.Registry.List() {
			ids = append(ids, st.ID)
		}
		return core.Result{}, core.NotFoundf("Unknown store '%s'. Available: %s", storeID, strings.Join(ids, ", "))
	}

	toolCtx.Session.SetActiveStoreID(store.ID)
	toolCtx.StoreID = store.ID

	supports := store.Supports(core.CapabilityCheckout)
	note, explanation := "", "This merchant supports UCP checkout, so I can complete purchases automatically."
	if !supports {
		note = " (search-only; checkout not supported)"
		explanation = "This merchant does NOT expose UCP checkout capabilities, so agents cannot reliably complete checkout here."
	}

	res := core.SuccessMessage(fmt.Sprintf("Switched store to '%s'%s", store.ID, note))
	res.Explanation = fmt.Sprintf("Switched to '%s'. %s", store.ID, explanation)
	res.Extra = map[string]any{
		"store_id":              store.ID,
		"supports_ucp_checkout": supports,
	}
	return res, nil
}

func (s *Shop) search(_ context.Context, toolCtx *core.ToolContext, args searchArgs) (core.Result, error) {
	store, err := s.Registry.Get(toolCtx.StoreID)
	if err != nil {
		return core.Result{}, err
	}
	results, err := catalog.SearchResults(store, args.Query)
	if err != nil {
		return core.Result{}, err
	}
	return core.Success(core.PayloadProductResults, results), nil
}

func key(toolCtx *core.ToolContext) checkout.Key {
	return checkout.Key{SessionID: toolCtx.Session.SessionID(), StoreID: toolCtx.StoreID}
}

func checkoutResult(c *checkout.Checkout, err error) (core.Result, error) {
	if err != nil {
		return core.Result{}, err
	}
	return core.Success(core.PayloadCheckout, c), nil
}

func (s *Shop) add(ctx context.Context, toolCtx *core.ToolContext, args addArgs) (core.Result, error) {
	return checkoutResult(s.Checkout.AddItem(ctx, key(toolCtx), args.ProductID, args.Quantity))
}

func (s *Shop) remove(ctx context.Context, toolCtx *core.ToolContext, args removeArgs) (core.Result, error) {
	return checkoutResult(s.Checkout.RemoveItem(ctx, key(toolCtx), args.ProductID))
}

func (s *Shop) update(ctx context.Context, toolCtx *core.ToolContext, args updateArgs) (core.Result, error) {
	return checkoutResult(s.Checkout.UpdateQuantity(ctx, key(toolCtx), args.ProductID, args.Quantity))
}

func (s *Shop) get(ctx context.Context, toolCtx *core.ToolContext, _ noArgs) (core.Result, error) {
	return checkoutResult(s.Checkout.Get(ctx, key(toolCtx)))
}

func (s *Shop) updateCustomer(ctx context.Context, toolCtx *core.ToolContext, args customerArgs) (core.Result, error) {
	addr := core.PostalAddress{
		FirstName:       args.FirstName,
		LastName:        args.LastName,
		StreetAddress:   args.StreetAddress,
		ExtendedAddress: args.ExtendedAddress,
		Locality:        args.AddressLocality,
		Region:          args.AddressRegion,
		PostalCode:      args.PostalCode,
		Country:         args.AddressCountry,
	}
	if _, err := s.Checkout.AttachDeliveryAndBuyer(ctx, key(toolCtx), addr, args.Email); err != nil {
		return checkoutResult(nil, err)
	}
	return s.startPayment(ctx, toolCtx, noArgs{})
}

func (s *Shop) startPayment(ctx context.Context, toolCtx *core.ToolContext, _ noArgs) (core.Result, error) {
	return checkoutResult(s.Checkout.StartPayment(ctx, key(toolCtx)))
}

func (s *Shop) complete(ctx context.Context, toolCtx *core.ToolContext, _ noArgs) (core.Result, error) {
	var state *core.PaymentState
	if ps, ok := toolCtx.Session.PaymentState(); ok {
		state = ps
	}
	c, err := s.Checkout.Complete(ctx, key(toolCtx), state)
	res, err := checkoutResult(c, err)
	if err == nil && c.Order != nil {
		res.Message = fmt.Sprintf("Order %s has been placed.", c.Order.ID)
	}
	return res, err
}
