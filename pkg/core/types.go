// Package core defines the fundamental types shared by the shopping runtime.
package core

import (
	"encoding/json"
	"strings"
)

// Capability is a feature tag a store advertises.
type Capability string

// CapabilityCheckout marks stores where an agent can complete a checkout.
const CapabilityCheckout Capability = "dev.ucp.shopping.checkout"

// DefaultCurrency is used when a store does not configure its own.
const DefaultCurrency = "USD"

// Product is an immutable catalog record. Price is in minor currency units.
type Product struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Price    int64  `json:"price" yaml:"price"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url"`
}

// StoreDecision is the outcome of a capability negotiation. It is produced
// per call and never persisted.
type StoreDecision struct {
	SelectedStoreID string `json:"selected_store_id"`
	Explanation     string `json:"explanation"`
	RejectedStoreID string `json:"rejected_store_id,omitempty"`
}

// Recommended returns the store the decision points to when it differs from
// currentID, or "" when there is no better option.
func (d *StoreDecision) Recommended(currentID string) string {
	if d == nil || d.SelectedStoreID == currentID {
		return ""
	}
	return d.SelectedStoreID
}

// PostalAddress is a delivery address attached to a checkout.
type PostalAddress struct {
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	StreetAddress   string `json:"street_address" validate:"required"`
	ExtendedAddress string `json:"extended_address,omitempty"`
	Locality        string `json:"address_locality" validate:"required"`
	Region          string `json:"address_region" validate:"required"`
	PostalCode      string `json:"postal_code" validate:"required"`
	Country         string `json:"address_country" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (a PostalAddress) Normalize() PostalAddress {
	return PostalAddress{
		FirstName:       strings.TrimSpace(a.FirstName),
		LastName:        strings.TrimSpace(a.LastName),
		StreetAddress:   strings.TrimSpace(a.StreetAddress),
		ExtendedAddress: strings.TrimSpace(a.ExtendedAddress),
		Locality:        strings.TrimSpace(a.Locality),
		Region:          strings.TrimSpace(a.Region),
		PostalCode:      strings.TrimSpace(a.PostalCode),
		Country:         strings.TrimSpace(a.Country),
	}
}

// PaymentInstrument is the opaque payment method selected by the buyer.
type PaymentInstrument struct {
	ID         string `json:"id"`
	HandlerID  string `json:"handler_id,omitempty"`
	Type       string `json:"type,omitempty"`
	Brand      string `json:"brand,omitempty"`
	LastDigits string `json:"last_digits,omitempty"`
	Token      string `json:"token,omitempty"`
}

// Redacted returns a copy without the credential token.
func (p PaymentInstrument) Redacted() PaymentInstrument {
	p.Token = ""
	return p
}

// PaymentState is supplied by the host when the buyer confirms a purchase.
// It is consumed once by the payment adapter and never persisted beyond that.
type PaymentState struct {
	Instrument  PaymentInstrument `json:"payment_data"`
	RiskSignals map[string]string `json:"risk_signals,omitempty"`
}

// FunctionDeclaration describes a tool to a calling orchestrator.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}
