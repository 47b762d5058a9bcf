package pricingsvc

import (
	"fmt"
	"strings"

	"github.com/corray333/backend-labs/payment/internal/service/models/coupon"
)

// PricingService computes cart totals. It is pure and stateless: every call
// re-validates the coupon against the current cart, so a discount can never
// survive a cart change that disqualifies it. Safe for concurrent use.
type PricingService struct {
	cfg Config
}

// Config holds the pricing tables. All rates are integer minor units or basis
// points; no floating point enters the arithmetic.
type Config struct {
	TaxRateBps           int64
	DefaultShippingCents int64
	ShippingRates        map[string]int64
	Coupons              map[string]coupon.Definition
}

// CartItem is one priced cart line.
type CartItem struct {
	UnitPriceCents int64
	Quantity       int
}

// Totals is the result of a quote. GrandTotalCents is what an order created
// from this cart must store as its immutable total price.
type Totals struct {
	SubtotalCents    int64  `json:"subtotalCents"`
	DiscountCents    int64  `json:"discountCents"`
	TaxableBaseCents int64  `json:"taxableBaseCents"`
	TaxCents         int64  `json:"taxCents"`
	ShippingCents    int64  `json:"shippingCents"`
	GrandTotalCents  int64  `json:"grandTotalCents"`
	DiscountApplied  bool   `json:"discountApplied"`
	RejectionReason  string `json:"rejectionReason,omitempty"`
}

// NewPricingService creates a new PricingService.
func NewPricingService(cfg Config) *PricingService {
	normalized := make(map[string]coupon.Definition, len(cfg.Coupons))
	for code, def := range cfg.Coupons {
		def.Code = strings.ToUpper(code)
		normalized[def.Code] = def
	}
	cfg.Coupons = normalized

	rates := make(map[string]int64, len(cfg.ShippingRates))
	for dest, cents := range cfg.ShippingRates {
		rates[strings.ToLower(dest)] = cents
	}
	cfg.ShippingRates = rates

	return &PricingService{cfg: cfg}
}

// Quote computes the totals for a cart, an optional coupon code and a
// shipping destination.
func (s *PricingService) Quote(items []CartItem, couponCode, destination string) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPriceCents * int64(item.Quantity)
	}

	totals := Totals{
		SubtotalCents: subtotal,
		ShippingCents: s.shippingRate(destination),
	}

	if couponCode != "" {
		s.applyCoupon(&totals, couponCode)
	}

	totals.TaxableBaseCents = subtotal - totals.DiscountCents
	totals.TaxCents = roundHalfUp(totals.TaxableBaseCents*s.cfg.TaxRateBps, 10_000)
	totals.GrandTotalCents = totals.TaxableBaseCents + totals.TaxCents + totals.ShippingCents

	return totals
}

func (s *PricingService) applyCoupon(totals *Totals, code string) {
	def, ok := s.cfg.Coupons[strings.ToUpper(code)]
	if !ok {
		// Unknown codes are not an error: the cart stays undiscounted.
		return
	}

	if totals.SubtotalCents < def.MinSubtotalCents {
		totals.RejectionReason = fmt.Sprintf(
			"coupon %s requires a subtotal of at least %d cents",
			def.Code, def.MinSubtotalCents,
		)

		return
	}

	switch def.Type {
	case coupon.TypePercentage:
		totals.DiscountCents = roundHalfUp(totals.SubtotalCents*def.Value, 100)
	case coupon.TypeFixed:
		totals.DiscountCents = min(def.Value, totals.SubtotalCents)
	case coupon.TypeShipping:
		totals.ShippingCents = 0
	}

	totals.DiscountApplied = true
}

func (s *PricingService) shippingRate(destination string) int64 {
	if cents, ok := s.cfg.ShippingRates[strings.ToLower(destination)]; ok {
		return cents
	}

	return s.cfg.DefaultShippingCents
}

func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
