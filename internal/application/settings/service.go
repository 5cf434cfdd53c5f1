// Package settings loads and stores the operator-editable pricing and
// shipping policies. Stored records are partial overrides merged onto the
// built-in defaults.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/setting"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service reads and writes configuration records
type Service struct {
	repo   setting.Repository
	logger *zap.Logger
}

// NewService creates a new settings Service
func NewService(repo setting.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.Named("settings")}
}

// Pricing returns the active pricing policy. A missing, malformed or
// invalid record yields the defaults and a warning, never an error.
func (s *Service) Pricing(ctx context.Context) pricing.Config {
	cfg := pricing.DefaultConfig()
	if !s.load(ctx, setting.KeyPricingConfig, &cfg) {
		return pricing.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("stored pricing config is invalid, using defaults", zap.Error(err))
		return pricing.DefaultConfig()
	}
	return cfg
}

// Shipping returns the active shipping policy, with the same fallback
// rules as Pricing
func (s *Service) Shipping(ctx context.Context) shipping.Config {
	cfg := shipping.DefaultConfig()
	if !s.load(ctx, setting.KeyShippingConfig, &cfg) {
		return shipping.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("stored shipping config is invalid, using defaults", zap.Error(err))
		return shipping.DefaultConfig()
	}
	return cfg
}

// UpdatePricing merges overrides onto the active policy, validates the
// result and stores it
func (s *Service) UpdatePricing(ctx context.Context, overrides map[string]any) (pricing.Config, error) {
	cfg := s.Pricing(ctx)
	if err := merge(overrides, &cfg, nil); err != nil {
		return pricing.Config{}, shared.NewDomainError("INVALID_PRICING_CONFIG", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return pricing.Config{}, err
	}
	if err := s.store(ctx, setting.KeyPricingConfig, cfg); err != nil {
		return pricing.Config{}, err
	}
	s.logger.Info("pricing config updated")
	return cfg, nil
}

// UpdateShipping merges overrides onto the active policy, validates the
// result and stores it
func (s *Service) UpdateShipping(ctx context.Context, overrides map[string]any) (shipping.Config, error) {
	cfg := s.Shipping(ctx)
	if err := merge(overrides, &cfg, nil); err != nil {
		return shipping.Config{}, shared.NewDomainError("INVALID_SHIPPING_CONFIG", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return shipping.Config{}, err
	}
	if err := s.store(ctx, setting.KeyShippingConfig, cfg); err != nil {
		return shipping.Config{}, err
	}
	s.logger.Info("shipping config updated")
	return cfg, nil
}

// load merges the stored record for key onto out. It returns false when
// the record is absent or unusable.
func (s *Service) load(ctx context.Context, key string, out any) bool {
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("failed to read config record, using defaults", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	overrides, err := decodeJSON(rec.Value)
	if err != nil {
		s.logger.Warn("stored config record is malformed, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}

	var md mapstructure.Metadata
	if err := merge(overrides, out, &md); err != nil {
		s.logger.Warn("stored config record does not fit, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	if len(md.Unused) > 0 {
		s.logger.Warn("ignoring unknown config fields", zap.String("key", key), zap.Strings("fields", md.Unused))
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, cfg any) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.repo.Put(ctx, &setting.Record{Key: key, Value: value, UpdatedAt: time.Now()})
}

func decodeJSON(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("record is not an object")
	}
	return m, nil
}

// merge decodes a partial override map onto out. Fields absent from
// overrides keep their current value; slices are replaced, not merged.
func merge(overrides map[string]any, out any, md *mapstructure.Metadata) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decimalHook,
		ZeroFields: true,
		Metadata:   md,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(overrides)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook accepts strings, JSON numbers and floats for decimal fields
func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return nil, fmt.Errorf("cannot convert %s to decimal", from)
}

// PricingWithOverrides merges overrides onto the active pricing policy
// without storing the result. Used for one-off reprice runs.
func (s *Service) PricingWithOverrides(ctx context.Context, overrides map[string]any) (pricing.Config, error) {
	cfg := s.Pricing(ctx)
	if len(overrides) == 0 {
		return cfg, nil
	}
	if err := merge(overrides, &cfg, nil); err != nil {
		return pricing.Config{}, shared.NewDomainError("INVALID_PRICING_CONFIG", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return pricing.Config{}, err
	}
	return cfg, nil
}
