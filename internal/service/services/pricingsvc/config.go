package pricingsvc

import (
	"github.com/corray333/backend-labs/payment/internal/service/models/coupon"
	"github.com/spf13/viper"
)

type couponConfig struct {
	Code             string `mapstructure:"code"`
	Type             string `mapstructure:"type"`
	Value            int64  `mapstructure:"value"`
	MinSubtotalCents int64  `mapstructure:"min_subtotal_cents"`
	Description      string `mapstructure:"description"`
}

// MustConfigFromViper loads the pricing tables from config. A malformed
// coupon definition is a startup error, not something to discover on the
// first checkout.
func MustConfigFromViper() Config {
	cfg := Config{
		TaxRateBps:           viper.GetInt64("pricing.tax_rate_bps"),
		DefaultShippingCents: viper.GetInt64("pricing.shipping.default_cents"),
		ShippingRates:        map[string]int64{},
		Coupons:              map[string]coupon.Definition{},
	}

	for dest := range viper.GetStringMap("pricing.shipping.rates") {
		cfg.ShippingRates[dest] = viper.GetInt64("pricing.shipping.rates." + dest)
	}

	var coupons []couponConfig
	if err := viper.UnmarshalKey("pricing.coupons", &coupons); err != nil {
		panic("error while reading coupon catalog: " + err.Error())
	}

	for _, c := range coupons {
		couponType, err := coupon.ParseType(c.Type)
		if err != nil {
			panic("invalid coupon type for " + c.Code + ": " + c.Type)
		}

		cfg.Coupons[c.Code] = coupon.Definition{
			Code:             c.Code,
			Type:             couponType,
			Value:            c.Value,
			MinSubtotalCents: c.MinSubtotalCents,
			Description:      c.Description,
		}
	}

	return cfg
}
