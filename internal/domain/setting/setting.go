// Package setting holds named configuration records edited by operators
// at runtime.
package setting

import (
	"context"
	"encoding/json"
	"time"
)

// Well-known record keys
const (
	KeyPricingConfig  = "pricing_config"
	KeyShippingConfig = "shipping_config"
)

// Record is a single named JSON configuration record
type Record struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

// Repository reads and writes configuration records
type Repository interface {
	// Get returns shared.ErrNotFound when the record is absent
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, record *Record) error
}
