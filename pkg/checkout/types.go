package checkout

import (
	"math"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Key identifies the checkout slot of one caller session at one store.
type Key struct {
	SessionID string
	StoreID   string
}

func (k Key) lockKey() string {
	return k.SessionID + "\x00" + k.StoreID
}

// Totals are amounts in minor currency units.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Total    int64 `json:"total"`
}

// LineItem is one product in a checkout. Item is a snapshot of the catalog
// entry taken when the product was first added.
type LineItem struct {
	ID       string       `json:"id"`
	Item     core.Product `json:"item"`
	Quantity int          `json:"quantity"`
	Totals   Totals       `json:"totals"`
}

// Buyer holds the contact details of the purchaser.
type Buyer struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// PaymentHandler is a payment method the merchant accepts.
type PaymentHandler struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Payment holds the accepted handlers and, once paid, the instrument used.
type Payment struct {
	Handlers             []PaymentHandler         `json:"handlers"`
	SelectedInstrumentID string                   `json:"selected_instrument_id,omitempty"`
	Instruments          []core.PaymentInstrument `json:"instruments,omitempty"`
}

// Order is the result of a completed checkout.
type Order struct {
	ID               string    `json:"id"`
	CheckoutID       string    `json:"checkout_id"`
	PermalinkURL     string    `json:"permalink_url,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	PlacedAt         time.Time `json:"placed_at"`
}

// Checkout is the cart and order-in-progress of one caller at one store.
type Checkout struct {
	ID        string              `json:"id"`
	StoreID   string              `json:"store_id"`
	Currency  string              `json:"currency"`
	Status    Status              `json:"status"`
	LineItems []LineItem          `json:"line_items"`
	Buyer     *Buyer              `json:"buyer,omitempty"`
	Delivery  *core.PostalAddress `json:"delivery_address,omitempty"`
	Payment   Payment             `json:"payment"`
	Totals    Totals              `json:"totals"`
	Order     *Order              `json:"order,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Clone returns a deep copy.
func (c *Checkout) Clone() *Checkout {
	if c == nil {
		return nil
	}
	out := *c
	out.LineItems = append([]LineItem(nil), c.LineItems...)
	if out.LineItems == nil {
		out.LineItems = []LineItem{}
	}
	if c.Buyer != nil {
		b := *c.Buyer
		out.Buyer = &b
	}
	if c.Delivery != nil {
		d := *c.Delivery
		out.Delivery = &d
	}
	out.Payment.Handlers = append([]PaymentHandler(nil), c.Payment.Handlers...)
	out.Payment.Instruments = append([]core.PaymentInstrument(nil), c.Payment.Instruments...)
	if c.Order != nil {
		o := *c.Order
		out.Order = &o
	}
	return &out
}

// Item returns the index of the line item for productID, or -1.
func (c *Checkout) Item(productID string) int {
	for i, li := range c.LineItems {
		if li.Item.ID == productID {
			return i
		}
	}
	return -1
}

// ItemCount returns the total quantity across line items.
func (c *Checkout) ItemCount() int {
	n := 0
	for _, li := range c.LineItems {
		n += li.Quantity
	}
	return n
}

func (c *Checkout) recalculate() error {
	var subtotal int64
	for i := range c.LineItems {
		li := &c.LineItems[i]
		if li.Item.Price > 0 && int64(li.Quantity) > math.MaxInt64/li.Item.Price {
			return core.InvalidArgumentf("total for product %q is too large", li.Item.ID)
		}
		amount := li.Item.Price * int64(li.Quantity)
		if subtotal > math.MaxInt64-amount {
			return core.InvalidArgumentf("checkout total is too large")
		}
		li.Totals = Totals{Subtotal: amount, Total: amount}
		subtotal += amount
	}
	c.Totals = Totals{Subtotal: subtotal, Total: subtotal}
	return nil
}

// MissingForPayment lists what must be supplied before payment can start.
func (c *Checkout) MissingForPayment() []string {
	var missing []string
	if len(c.LineItems) == 0 {
		missing = append(missing, "line_items")
	}
	if c.Buyer == nil || c.Buyer.Email == "" {
		missing = append(missing, "email")
	}
	if c.Delivery == nil {
		missing = append(missing, "delivery_address")
	}
	return missing
}

// itemsChanged applies the status rule for line item mutations: a checkout
// awaiting payment confirmation must have its payment restarted.
func (c *Checkout) itemsChanged(now time.Time) error {
	if err := c.recalculate(); err != nil {
		return err
	}
	if c.Status == StatusAwaitingPaymentConfirmation {
		c.Status = StatusAwaitingPaymentInfo
	}
	c.UpdatedAt = now
	return nil
}
