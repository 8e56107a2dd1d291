package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Stores.Stores, 2)
	assert.Equal(t, "tierra_de_cafe", cfg.Stores.Stores[0].ID)
	assert.Empty(t, cfg.Stores.Stores[0].Capabilities)
	assert.Equal(t, "US", cfg.Checkout.DefaultCountry)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shopper.yaml")
	doc := `
server:
  port: 8088
  base_url: https://shop.example.com/
stores:
  stores:
    - id: a
      catalog: a.json
    - id: b
      catalog: b.json
      capabilities: [dev.ucp.shopping.checkout]
checkout:
  default_country: ${SHOPPER_TEST_COUNTRY:-CA}
  payment_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "https://shop.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "https://shop.example.com", cfg.Stores.ImageBaseURL)
	assert.Equal(t, "CA", cfg.Checkout.DefaultCountry)
	assert.Equal(t, 3*time.Second, cfg.Checkout.PaymentTimeout)
	require.Len(t, cfg.Stores.Stores, 2)
	assert.Equal(t, []string{"dev.ucp.shopping.checkout"}, cfg.Stores.Stores[1].Capabilities)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv("SHOPPER_PORT", "9001")
	t.Setenv("SHOPPER_SESSION_URI", "redis://localhost:6379/2")
	t.Setenv("SHOPPER_PAYMENT_TIMEOUT", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Session.URI)
	assert.Equal(t, 250*time.Millisecond, cfg.Checkout.PaymentTimeout)
	assert.Equal(t, "http://localhost:9001", cfg.Server.BaseURL)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no stores", func(c *Config) { c.Stores.Stores = nil }},
		{"duplicate store", func(c *Config) { c.Stores.Stores[1].ID = c.Stores.Stores[0].ID }},
		{"missing catalog", func(c *Config) { c.Stores.Stores[0].Catalog = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero message limit", func(c *Config) { c.Server.MaxMessageBytes = 0 }},
		{"zero timeout", func(c *Config) { c.Checkout.PaymentTimeout = 0 }},
		{"zero max quantity", func(c *Config) { c.Checkout.MaxQuantity = 0 }},
		{"unknown session backend", func(c *Config) { c.Session.URI = "sqlite://x.db" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
