package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/setting"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockSettingRepository struct {
	mock.Mock
}

func (m *MockSettingRepository) Get(ctx context.Context, key string) (*setting.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*setting.Record), args.Error(1)
}

func (m *MockSettingRepository) Put(ctx context.Context, record *setting.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func record(key, value string) *setting.Record {
	return &setting.Record{Key: key, Value: []byte(value)}
}

func TestService_Pricing_DefaultsWhenAbsent(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).Return(nil, shared.ErrNotFound)

	cfg := NewService(repo, zap.NewNop()).Pricing(context.Background())
	assert.Equal(t, pricing.DefaultConfig(), cfg)
}

func TestService_Pricing_PartialOverride(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).
		Return(record(setting.KeyPricingConfig, `{"markup_multiplier": "3", "minimum_margin": 7.5}`), nil)

	cfg := NewService(repo, zap.NewNop()).Pricing(context.Background())

	def := pricing.DefaultConfig()
	assert.True(t, cfg.MarkupMultiplier.Equal(decimal.NewFromInt(3)))
	assert.True(t, cfg.MinimumMargin.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, cfg.FeePercent.Equal(def.FeePercent), "absent fields keep defaults")
	assert.True(t, cfg.CompareAtPercent.Equal(def.CompareAtPercent))
}

func TestService_Pricing_FallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		err   error
		warn  string
	}{
		{name: "malformed json", value: `{not json`, warn: "stored config record is malformed, using defaults"},
		{name: "not an object", value: `null`, warn: "stored config record is malformed, using defaults"},
		{name: "wrong type", value: `{"markup_multiplier": "lots"}`, warn: "stored config record does not fit, using defaults"},
		{name: "invalid values", value: `{"markup_multiplier": -1}`, warn: "stored pricing config is invalid, using defaults"},
		{name: "read error", err: errors.New("db down"), warn: "failed to read config record, using defaults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			repo := new(MockSettingRepository)
			if tt.err != nil {
				repo.On("Get", mock.Anything, setting.KeyPricingConfig).Return(nil, tt.err)
			} else {
				repo.On("Get", mock.Anything, setting.KeyPricingConfig).Return(record(setting.KeyPricingConfig, tt.value), nil)
			}

			cfg := NewService(repo, zap.New(core)).Pricing(context.Background())
			assert.Equal(t, pricing.DefaultConfig(), cfg)
			assert.Equal(t, 1, logs.FilterMessage(tt.warn).Len())
		})
	}
}

func TestService_Pricing_WarnsOnUnknownFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).
		Return(record(setting.KeyPricingConfig, `{"markup": 9}`), nil)

	cfg := NewService(repo, zap.New(core)).Pricing(context.Background())
	assert.Equal(t, pricing.DefaultConfig(), cfg)
	assert.Equal(t, 1, logs.FilterMessage("ignoring unknown config fields").Len())
}

func TestService_Shipping_ReplacesTiers(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyShippingConfig).
		Return(record(setting.KeyShippingConfig, `{
			"free_shipping_enabled": false,
			"tiers": [{"max_grams": 1000, "price": "5.00"}, {"max_grams": null, "price": "11.00"}]
		}`), nil)

	cfg := NewService(repo, zap.NewNop()).Shipping(context.Background())

	assert.False(t, cfg.FreeShippingEnabled)
	require.Len(t, cfg.Tiers, 2)
	require.NotNil(t, cfg.Tiers[0].MaxGrams)
	assert.Equal(t, 1000, *cfg.Tiers[0].MaxGrams)
	assert.Nil(t, cfg.Tiers[1].MaxGrams)
	assert.True(t, cfg.Tiers[1].Price.Equal(decimal.NewFromInt(11)))
	assert.True(t, cfg.MinimumCharge.Equal(shipping.DefaultConfig().MinimumCharge))
}

func TestService_UpdatePricing(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).Return(nil, shared.ErrNotFound)
	var stored *setting.Record
	repo.On("Put", mock.Anything, mock.AnythingOfType("*setting.Record")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*setting.Record) }).
		Return(nil)

	svc := NewService(repo, zap.NewNop())
	cfg, err := svc.UpdatePricing(context.Background(), map[string]any{"markup_multiplier": 2.0})
	require.NoError(t, err)
	assert.True(t, cfg.MarkupMultiplier.Equal(decimal.NewFromInt(2)))

	require.NotNil(t, stored)
	assert.Equal(t, setting.KeyPricingConfig, stored.Key)
	assert.Contains(t, string(stored.Value), `"markup_multiplier":"2"`)
}

func TestService_UpdatePricing_RejectsInvalid(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).Return(nil, shared.ErrNotFound)

	svc := NewService(repo, zap.NewNop())
	_, err := svc.UpdatePricing(context.Background(), map[string]any{"fee_percent": 150})

	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_PRICING_CONFIG", de.Code)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestService_UpdateShipping(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyShippingConfig).Return(nil, shared.ErrNotFound)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, zap.NewNop())
	cfg, err := svc.UpdateShipping(context.Background(), map[string]any{
		"live_quote_enabled": true,
		"preferred_carrier":  "USPS",
	})
	require.NoError(t, err)
	assert.True(t, cfg.LiveQuoteEnabled)
	assert.Equal(t, "USPS", cfg.PreferredCarrier)
	assert.Len(t, cfg.Tiers, len(shipping.DefaultConfig().Tiers))
}

func TestService_PricingWithOverrides(t *testing.T) {
	repo := new(MockSettingRepository)
	repo.On("Get", mock.Anything, setting.KeyPricingConfig).
		Return(record(setting.KeyPricingConfig, `{"markup_multiplier": "3"}`), nil)
	svc := NewService(repo, zap.NewNop())

	cfg, err := svc.PricingWithOverrides(context.Background(), map[string]any{"minimum_margin": "1"})
	require.NoError(t, err)
	assert.True(t, cfg.MarkupMultiplier.Equal(decimal.NewFromInt(3)), "stored record still applies")
	assert.True(t, cfg.MinimumMargin.Equal(decimal.NewFromInt(1)))
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)

	_, err = svc.PricingWithOverrides(context.Background(), map[string]any{"markup_multiplier": 0})
	assert.Error(t, err)
}
