package coupon

import "errors"

// Type determines how a coupon's value is interpreted.
type Type string

const (
	// TypePercentage discounts the subtotal by Value percent.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a flat Value cents, capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeShipping forces the shipping cost to zero; Value is ignored.
	TypeShipping Type = "shipping"
)

var ErrInvalidType = errors.New("invalid coupon type")

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePercentage, TypeFixed, TypeShipping:
		return Type(s), nil
	default:
		return "", ErrInvalidType
	}
}

// Definition is a configured coupon. Coupons live in config, not in the
// database; nothing about them is persisted per-order.
type Definition struct {
	Code             string `json:"code"`
	Type             Type   `json:"type"`
	Value            int64  `json:"value"`
	MinSubtotalCents int64  `json:"minSubtotalCents"`
	Description      string `json:"description"`
}
