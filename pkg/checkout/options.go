package checkout

import (
	"log/slog"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/config"
)

// Options configure a Manager.
type Options struct {
	// DefaultCountry fills a delivery address without a country.
	DefaultCountry string

	// PaymentTimeout bounds each payment processor call.
	PaymentTimeout time.Duration

	// MaxQuantity is the largest quantity a single line item may hold.
	MaxQuantity int

	// Handlers are advertised on every new checkout.
	Handlers []PaymentHandler

	// OrderBaseURL prefixes order permalinks. Empty leaves them unset.
	OrderBaseURL string

	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultMaxQuantity is used when no line item limit is configured.
const DefaultMaxQuantity = 999

// DefaultOptions returns options matching config.DefaultConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// OptionsFromConfig derives manager options from the runtime configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	handlers := make([]PaymentHandler, 0, len(cfg.Payment.Handlers))
	for _, h := range cfg.Payment.Handlers {
		handlers = append(handlers, PaymentHandler{ID: h.ID, Name: h.Name, Type: h.Type})
	}
	return Options{
		DefaultCountry: cfg.Checkout.DefaultCountry,
		PaymentTimeout: cfg.Checkout.PaymentTimeout,
		MaxQuantity:    cfg.Checkout.MaxQuantity,
		Handlers:       handlers,
		OrderBaseURL:   cfg.Server.BaseURL,
	}
}

func (o *Options) setDefaults() {
	if o.DefaultCountry == "" {
		o.DefaultCountry = "US"
	}
	if o.PaymentTimeout <= 0 {
		o.PaymentTimeout = 10 * time.Second
	}
	if o.MaxQuantity <= 0 {
		o.MaxQuantity = DefaultMaxQuantity
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
