package currency

import (
	"database/sql/driver"
	"errors"
	"strings"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

func ParseCurrency(s string) (Currency, error) {
	switch strings.ToUpper(s) {
	case CurrencyUSD.String():
		return CurrencyUSD, nil
	case CurrencyEUR.String():
		return CurrencyEUR, nil
	default:
		return "", ErrInvalidCurrency
	}
}
