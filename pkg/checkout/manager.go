// Package checkout manages checkout sessions, one per caller session and
// store, from the first added item through payment to a placed order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agent-protocol/ucp-shopper/internal/keymutex"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/negotiator"
	"github.com/agent-protocol/ucp-shopper/pkg/payment"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
)

// ErrNoActiveCheckout is returned when an operation needs a checkout and the
// slot is empty.
var ErrNoActiveCheckout = fmt.Errorf("no active checkout: %w", core.ErrNotFound)

// Messages returned as NeedsMoreInfo.
const (
	MsgPaymentDataMissing = "Payment Data is missing. Click 'Confirm Purchase' to complete the purchase."
	MsgStartPaymentFirst  = "Payment has not been started. Call start_payment to review the order before completing it."
)

// Manager owns every checkout session. Operations on the same Key are
// serialized; different keys proceed independently. Returned checkouts are
// copies and never alias manager state.
type Manager struct {
	reg       *registry.Registry
	processor payment.Processor
	opts      Options
	validate  *validator.Validate
	locks     *keymutex.KeyMutex

	mu       sync.RWMutex
	sessions map[Key]*Checkout
}

// NewManager creates a manager over reg that pays through processor.
func NewManager(reg *registry.Registry, processor payment.Processor, opts Options) *Manager {
	opts.setDefaults()

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Manager{
		reg:       reg,
		processor: processor,
		opts:      opts,
		validate:  v,
		locks:     keymutex.New(),
		sessions:  make(map[Key]*Checkout),
	}
}

// gate checks that key names a known, checkout capable store.
func (m *Manager) gate(key Key) (*registry.Store, error) {
	store, err := m.reg.Get(key.StoreID)
	if err != nil {
		return nil, err
	}
	if d := negotiator.RequireCheckout(m.reg, key.StoreID); d != nil {
		return nil, &core.CapabilityDeniedError{StoreID: key.StoreID, Decision: *d}
	}
	return store, nil
}

func (m *Manager) load(key Key) *Checkout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[key]
}

func (m *Manager) commit(key Key, c *Checkout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c == nil {
		delete(m.sessions, key)
		return
	}
	m.sessions[key] = c
}

// mutate runs fn on a copy of the current checkout and commits the copy only
// when fn succeeds.
func (m *Manager) mutate(ctx context.Context, key Key, fn func(c *Checkout) error) (*Checkout, error) {
	if _, err := m.gate(key); err != nil {
		return nil, err
	}
	unlock := m.locks.Lock(key.lockKey())
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := m.load(key)
	if cur == nil {
		return nil, ErrNoActiveCheckout
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.commit(key, next)
	return next.Clone(), nil
}

// AddItem adds quantity of productID, creating the checkout on first use.
// Adding a product already in the checkout increases its quantity.
func (m *Manager) AddItem(ctx context.Context, key Key, productID string, quantity int) (*Checkout, error) {
	store, err := m.gate(key)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, core.InvalidArgumentf("quantity must be at least 1, got %d", quantity)
	}
	if err := m.checkQuantity(quantity); err != nil {
		return nil, err
	}
	product, ok := store.Product(productID)
	if !ok {
		return nil, core.NotFoundf("product %q in store %q", productID, store.ID)
	}

	unlock := m.locks.Lock(key.lockKey())
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.opts.Now()
	var next *Checkout
	if cur := m.load(key); cur != nil {
		next = cur.Clone()
	} else {
		next = m.newCheckout(store)
		m.opts.Logger.Debug("checkout created", "checkout_id", next.ID, "store_id", store.ID, "session_id", key.SessionID)
	}

	if i := next.Item(productID); i >= 0 {
		if err := m.checkQuantity(next.LineItems[i].Quantity + quantity); err != nil {
			return nil, err
		}
		next.LineItems[i].Quantity += quantity
	} else {
		next.LineItems = append(next.LineItems, LineItem{
			ID:       newID(PrefixLineItem),
			Item:     product,
			Quantity: quantity,
		})
	}
	if err := next.itemsChanged(now); err != nil {
		return nil, err
	}

	m.commit(key, next)
	return next.Clone(), nil
}

// checkQuantity bounds the quantity of a single line item.
func (m *Manager) checkQuantity(quantity int) error {
	if quantity > m.opts.MaxQuantity {
		return core.InvalidArgumentf("quantity must be at most %d, got %d", m.opts.MaxQuantity, quantity)
	}
	return nil
}

func (m *Manager) newCheckout(store *registry.Store) *Checkout {
	now := m.opts.Now()
	return &Checkout{
		ID:        newID(PrefixCheckout),
		StoreID:   store.ID,
		Currency:  store.Currency,
		Status:    StatusOpen,
		LineItems: []LineItem{},
		Payment:   Payment{Handlers: append([]PaymentHandler(nil), m.opts.Handlers...)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RemoveItem removes productID from the checkout.
func (m *Manager) RemoveItem(ctx context.Context, key Key, productID string) (*Checkout, error) {
	return m.mutate(ctx, key, func(c *Checkout) error {
		i := c.Item(productID)
		if i < 0 {
			return core.NotFoundf("product %q is not in the checkout", productID)
		}
		c.LineItems = append(c.LineItems[:i], c.LineItems[i+1:]...)
		return c.itemsChanged(m.opts.Now())
	})
}

// UpdateQuantity sets the quantity of productID. Zero removes the item;
// negative quantities and quantities above Options.MaxQuantity are rejected
// and leave the checkout unchanged.
func (m *Manager) UpdateQuantity(ctx context.Context, key Key, productID string, quantity int) (*Checkout, error) {
	if quantity < 0 {
		if _, err := m.gate(key); err != nil {
			return nil, err
		}
		return nil, core.InvalidArgumentf("quantity must not be negative, got %d", quantity)
	}
	if err := m.checkQuantity(quantity); err != nil {
		if _, gerr := m.gate(key); gerr != nil {
			return nil, gerr
		}
		return nil, err
	}
	if quantity == 0 {
		return m.RemoveItem(ctx, key, productID)
	}
	return m.mutate(ctx, key, func(c *Checkout) error {
		i := c.Item(productID)
		if i < 0 {
			return core.NotFoundf("product %q is not in the checkout", productID)
		}
		c.LineItems[i].Quantity = quantity
		return c.itemsChanged(m.opts.Now())
	})
}

// Get returns the active checkout of key.
func (m *Manager) Get(ctx context.Context, key Key) (*Checkout, error) {
	if _, err := m.gate(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := m.load(key)
	if cur == nil {
		return nil, ErrNoActiveCheckout
	}
	return cur.Clone(), nil
}

// AttachDeliveryAndBuyer validates and attaches a delivery address and an
// optional buyer email, moving the checkout to awaiting_payment_info.
func (m *Manager) AttachDeliveryAndBuyer(ctx context.Context, key Key, addr core.PostalAddress, email string) (*Checkout, error) {
	addr = addr.Normalize()
	if addr.Country == "" {
		addr.Country = m.opts.DefaultCountry
	}
	email = strings.TrimSpace(email)

	if err := m.validateAddress(addr); err != nil {
		if _, gerr := m.gate(key); gerr != nil {
			return nil, gerr
		}
		return nil, err
	}
	if email != "" {
		if err := m.validate.Var(email, "email"); err != nil {
			return nil, core.InvalidArgumentf("invalid email address %q", email)
		}
	}

	return m.mutate(ctx, key, func(c *Checkout) error {
		c.Delivery = &addr
		buyer := Buyer{FirstName: addr.FirstName, LastName: addr.LastName}
		if c.Buyer != nil {
			buyer.Email = c.Buyer.Email
		}
		if email != "" {
			buyer.Email = email
		}
		c.Buyer = &buyer
		c.Status = StatusAwaitingPaymentInfo
		c.UpdatedAt = m.opts.Now()
		return nil
	})
}

func (m *Manager) validateAddress(addr core.PostalAddress) error {
	err := m.validate.Struct(addr)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.InvalidArgumentf("invalid delivery address: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return core.InvalidArgumentf("delivery address is missing %s", strings.Join(fields, ", "))
}

// StartPayment checks that the checkout has everything needed for payment.
// When something is missing it returns a *core.NeedsMoreInfoError; otherwise
// the checkout moves to awaiting_payment_confirmation.
func (m *Manager) StartPayment(ctx context.Context, key Key) (*Checkout, error) {
	return m.mutate(ctx, key, func(c *Checkout) error {
		return m.startPayment(c)
	})
}

func (m *Manager) startPayment(c *Checkout) error {
	if missing := c.MissingForPayment(); len(missing) > 0 {
		return &core.NeedsMoreInfoError{
			Missing: missing,
			Message: "Please provide the following to continue with payment: " + describeMissing(missing) + ".",
		}
	}
	if c.Status != StatusAwaitingPaymentConfirmation {
		c.Status = StatusAwaitingPaymentConfirmation
		c.UpdatedAt = m.opts.Now()
	}
	return nil
}

func describeMissing(missing []string) string {
	words := make([]string, 0, len(missing))
	for _, f := range missing {
		switch f {
		case "line_items":
			words = append(words, "at least one item")
		case "email":
			words = append(words, "buyer email address")
		case "delivery_address":
			words = append(words, "delivery address")
		default:
			words = append(words, f)
		}
	}
	return strings.Join(words, ", ")
}

// Complete pays for the checkout and places the order. A checkout whose
// buyer and delivery details are complete is moved to
// awaiting_payment_confirmation first. Payment attach, order placement and
// clearing the slot are committed together, only after the processor
// confirms. Any other processor result leaves the checkout awaiting
// confirmation and is returned as a *core.AdapterError.
func (m *Manager) Complete(ctx context.Context, key Key, state *core.PaymentState) (*Checkout, error) {
	if _, err := m.gate(key); err != nil {
		return nil, err
	}
	unlock := m.locks.Lock(key.lockKey())
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := m.load(key)
	if cur == nil {
		return nil, ErrNoActiveCheckout
	}

	switch cur.Status {
	case StatusOpen:
		missing := cur.MissingForPayment()
		if len(missing) == 0 {
			missing = []string{"delivery_address"}
		}
		return nil, &core.NeedsMoreInfoError{
			Missing: missing,
			Message: "Please provide the following to complete the purchase: " + describeMissing(missing) + ".",
		}
	case StatusAwaitingPaymentInfo:
		if state == nil {
			if missing := cur.MissingForPayment(); len(missing) > 0 {
				return nil, &core.NeedsMoreInfoError{Missing: missing, Message: "Please provide the following to complete the purchase: " + describeMissing(missing) + "."}
			}
			return nil, &core.NeedsMoreInfoError{Missing: []string{"payment_data"}, Message: MsgStartPaymentFirst}
		}
		started := cur.Clone()
		if err := m.startPayment(started); err != nil {
			return nil, err
		}
		m.commit(key, started)
		cur = started
	case StatusCompleted:
		return nil, ErrNoActiveCheckout
	}

	if state == nil {
		return nil, &core.NeedsMoreInfoError{Missing: []string{"payment_data"}, Message: MsgPaymentDataMissing}
	}
	if state.Instrument.ID == "" {
		return nil, core.InvalidArgumentf("payment instrument id is required")
	}

	payCtx, cancel := context.WithTimeout(ctx, m.opts.PaymentTimeout)
	defer cancel()

	outcome, err := m.processor.Process(payCtx, &payment.Request{
		Instrument:     state.Instrument,
		RiskSignals:    state.RiskSignals,
		Amount:         cur.Totals.Total,
		Currency:       cur.Currency,
		IdempotencyKey: cur.ID,
	})
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return nil, &core.AdapterError{Reason: "payment processor timed out", Transient: true, Err: err}
	case err != nil:
		return nil, &core.AdapterError{Reason: "payment processor error", Transient: true, Err: err}
	case outcome == nil:
		return nil, &core.AdapterError{Reason: "Failed to receive a valid response from the payment processor", Transient: true}
	case !outcome.Completed():
		reason := outcome.Reason
		if reason == "" {
			reason = fmt.Sprintf("Payment %s.", outcome.Status)
		}
		return nil, &core.AdapterError{Reason: reason}
	}

	now := m.opts.Now()
	done := cur.Clone()
	instrument := state.Instrument.Redacted()
	done.Payment.SelectedInstrumentID = instrument.ID
	done.Payment.Instruments = []core.PaymentInstrument{instrument}
	done.Order = m.placeOrder(done, outcome)
	done.Status = StatusCompleted
	done.UpdatedAt = now

	m.commit(key, nil)
	m.opts.Logger.Info("order placed",
		slog.String("checkout_id", done.ID),
		slog.String("order_id", done.Order.ID),
		slog.String("store_id", done.StoreID),
		slog.Int64("total", done.Totals.Total),
	)
	return done.Clone(), nil
}

func (m *Manager) placeOrder(c *Checkout, outcome *payment.Outcome) *Order {
	order := &Order{
		ID:               newID(PrefixOrder),
		CheckoutID:       c.ID,
		PaymentReference: outcome.Reference,
		PlacedAt:         m.opts.Now(),
	}
	if m.opts.OrderBaseURL != "" {
		order.PermalinkURL = strings.TrimRight(m.opts.OrderBaseURL, "/") + "/orders/" + order.ID
	}
	return order
}

// Len returns the number of active checkouts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
