package supplierapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/supplier"
)

// DefaultBaseURL is the production API root
const DefaultBaseURL = "https://developers.cjdropshipping.com/api2.0/v1"

// Config holds credentials and pacing for the supplier API
type Config struct {
	BaseURL string
	Email   string
	APIKey  string
	// Timeout bounds a single HTTP round trip
	Timeout time.Duration
	// MinInterval is the minimum spacing between outbound requests
	MinInterval time.Duration
	// RateLimitBackoff is waited once before retrying a rate-limited call
	RateLimitBackoff time.Duration
	// RefreshSkew refreshes the token this long before it expires
	RefreshSkew time.Duration
	// TokenTTL is assumed when the auth response carries no expiry
	TokenTTL time.Duration
	// MaxResponseSize caps response bodies
	MaxResponseSize int64
}

// NewConfig creates a Config with defaults
func NewConfig(email, apiKey string) Config {
	cfg := Config{Email: email, APIKey: apiKey}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MinInterval <= 0 {
		c.MinInterval = time.Second
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = 2 * time.Second
	}
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = 10 * time.Minute
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = 10 * 1024 * 1024
	}
}

// Validate reports missing credentials as supplier.ErrNotConfigured
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email is required", supplier.ErrNotConfigured)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is required", supplier.ErrNotConfigured)
	}
	c.applyDefaults()
	return nil
}
