package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars replaces ${VAR} and ${VAR:-default} references.
func expandEnvVars(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	return envBraced.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envBraced.FindStringSubmatch(match)[1])
	})
}

// LoadEnvFiles loads .env.local and .env from the working directory when present.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SHOPPER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SHOPPER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("SHOPPER_CATALOG_DIR"); v != "" {
		c.Stores.CatalogDir = v
	}
	if v := os.Getenv("SHOPPER_SESSION_URI"); v != "" {
		c.Session.URI = v
	}
	if v := os.Getenv("SHOPPER_DEFAULT_COUNTRY"); v != "" {
		c.Checkout.DefaultCountry = v
	}
	if v := os.Getenv("SHOPPER_PAYMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Checkout.PaymentTimeout = d
		}
	}
	if v := os.Getenv("SHOPPER_MAX_QUANTITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Checkout.MaxQuantity = n
		}
	}
	if v := os.Getenv("SHOPPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
