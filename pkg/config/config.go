// Package config loads the runtime configuration from YAML, .env files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stores   StoresConfig   `yaml:"stores"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Payment  PaymentConfig  `yaml:"payment"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	BaseURL      string   `yaml:"base_url"`
	AppName      string   `yaml:"app_name"`
	AllowOrigins []string `yaml:"allow_origins"`
	A2AEnabled   bool     `yaml:"a2a_enabled"`

	// MaxMessageBytes caps a single /invoke_live websocket message.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoresConfig lists the merchants served by the registry.
type StoresConfig struct {
	// CatalogDir holds the product JSON files. Empty uses the built-in catalogs.
	CatalogDir string `yaml:"catalog_dir"`

	// ImageBaseURL prefixes relative product image paths. Empty uses Server.BaseURL.
	ImageBaseURL string `yaml:"image_base_url"`

	Stores []StoreConfig `yaml:"stores"`
}

// StoreConfig describes one merchant.
type StoreConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
	Catalog      string   `yaml:"catalog"`
	Currency     string   `yaml:"currency"`
}

// CheckoutConfig controls checkout session behaviour.
type CheckoutConfig struct {
	Currency       string        `yaml:"currency"`
	DefaultCountry string        `yaml:"default_country"`
	PaymentTimeout time.Duration `yaml:"payment_timeout"`
	MaxQuantity    int           `yaml:"max_quantity"`
}

// PaymentHandler is a payment method handler advertised on checkouts.
type PaymentHandler struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type,omitempty"`
}

// PaymentConfig configures the payment adapter.
type PaymentConfig struct {
	Handlers         []PaymentHandler `yaml:"handlers"`
	SimulatedLatency time.Duration    `yaml:"simulated_latency"`
}

// SessionConfig selects the session backend.
type SessionConfig struct {
	// URI is "memory://", "file:///dir" or "redis://[:password@]host:port/db".
	URI string        `yaml:"uri"`
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration of the two-store coffee demo.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:            10999,
			AppName:         "shopper_agent",
			MaxMessageBytes: 1 << 20,
		},
		Stores: StoresConfig{
			Stores: []StoreConfig{
				{
					ID:      "tierra_de_cafe",
					Name:    "Tierra de Café",
					Catalog: "tierra_de_cafe_products.json",
				},
				{
					ID:           "cafe_con_alma",
					Name:         "Café con Alma",
					Capabilities: []string{"dev.ucp.shopping.checkout"},
					Catalog:      "cafe_con_alma_products.json",
				},
			},
		},
		Checkout: CheckoutConfig{
			Currency:       "USD",
			DefaultCountry: "US",
			PaymentTimeout: 10 * time.Second,
			MaxQuantity:    999,
		},
		Payment: PaymentConfig{
			Handlers: []PaymentHandler{
				{ID: "mock_payment_handler", Name: "Mock Payment Processor", Type: "card"},
			},
		},
		Session: SessionConfig{
			URI: "memory://",
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Environment references in the document are
// expanded before decoding.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.Server.BaseURL == "" {
		host := c.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", host, c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Stores.ImageBaseURL == "" {
		c.Stores.ImageBaseURL = c.Server.BaseURL
	}
}

// Validate checks the configuration for values the runtime cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("server.max_message_bytes must be positive"))
	}
	if len(c.Stores.Stores) == 0 {
		errs = append(errs, errors.New("stores.stores must list at least one store"))
	}
	seen := make(map[string]bool, len(c.Stores.Stores))
	for i, s := range c.Stores.Stores {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("stores.stores[%d].id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate store id %q", s.ID))
		}
		seen[s.ID] = true
		if s.Catalog == "" {
			errs = append(errs, fmt.Errorf("store %q has no catalog", s.ID))
		}
	}
	if c.Checkout.PaymentTimeout <= 0 {
		errs = append(errs, errors.New("checkout.payment_timeout must be positive"))
	}
	if c.Checkout.MaxQuantity <= 0 {
		errs = append(errs, errors.New("checkout.max_quantity must be positive"))
	}
	if c.Checkout.DefaultCountry == "" {
		errs = append(errs, errors.New("checkout.default_country is required"))
	}
	if !supportedSessionURI(c.Session.URI) {
		errs = append(errs, fmt.Errorf("unsupported session.uri %q", c.Session.URI))
	}

	return errors.Join(errs...)
}

func supportedSessionURI(uri string) bool {
	for _, scheme := range []string{"memory://", "file://", "redis://", "rediss://"} {
		if strings.HasPrefix(uri, scheme) {
			return true
		}
	}
	return false
}
