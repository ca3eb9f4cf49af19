// Package commodity identifies the currencies and securities that splits
// are denominated in, and quantizes amounts to their smallest unit.
package commodity

import (
	"fmt"
	"strings"

	"github.com/govalues/money"
	"github.com/shopspring/decimal"
)

// NamespaceISO is the namespace of ISO-4217 currencies.
const NamespaceISO = "ISO4217"

// LooseFraction is the denominator used for amounts that have no
// commodity to quantize against (a split with no account).
const LooseFraction = 100000

// Commodity is a currency or security. Fraction is the smallest
// commodity unit (SCU) expressed as a denominator: 100 means cents.
type Commodity struct {
	Namespace string
	Mnemonic  string
	Fraction  int64
}

// New builds a commodity, rejecting a non-positive fraction.
func New(namespace, mnemonic string, fraction int64) (*Commodity, error) {
	if mnemonic == "" {
		return nil, fmt.Errorf("commodity: empty mnemonic")
	}
	if fraction <= 0 {
		return nil, fmt.Errorf("commodity %s: fraction must be positive, got %d", mnemonic, fraction)
	}
	return &Commodity{Namespace: namespace, Mnemonic: mnemonic, Fraction: fraction}, nil
}

// ISO returns the ISO-4217 currency for code, with its SCU derived from
// the currency's minor-unit scale (USD -> 100, JPY -> 1, BHD -> 1000).
func ISO(code string) (*Commodity, error) {
	curr, err := money.ParseCurr(strings.ToUpper(code))
	if err != nil {
		return nil, fmt.Errorf("commodity: %w", err)
	}
	fraction := int64(1)
	for i := 0; i < curr.Scale(); i++ {
		fraction *= 10
	}
	return &Commodity{Namespace: NamespaceISO, Mnemonic: curr.Code(), Fraction: fraction}, nil
}

// MustISO is ISO that panics on error. Intended for tests and fixtures.
func MustISO(code string) *Commodity {
	c, err := ISO(code)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns "NAMESPACE::MNEMONIC".
func (c *Commodity) String() string {
	if c == nil {
		return "<none>"
	}
	return c.Namespace + "::" + c.Mnemonic
}

// SCU returns the commodity's fraction, or LooseFraction for nil.
func (c *Commodity) SCU() int64 {
	if c == nil || c.Fraction <= 0 {
		return LooseFraction
	}
	return c.Fraction
}

// Equiv reports whether a and b denote the same commodity. Two nil
// commodities are equivalent; nil is never equivalent to a non-nil one.
func Equiv(a, b *Commodity) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Namespace == b.Namespace && a.Mnemonic == b.Mnemonic
}

// Quantize rounds d to the nearest multiple of 1/fraction, half away
// from zero. A non-positive fraction leaves d unchanged.
//
// Power-of-ten fractions are exact. Any other fraction can yield
// multiples with no finite decimal form (1/3); those are carried to
// decimal.DivisionPrecision places.
func Quantize(d decimal.Decimal, fraction int64) decimal.Decimal {
	if fraction <= 0 {
		return d
	}
	if places, ok := decimalPlaces(fraction); ok {
		return d.Round(places)
	}
	f := decimal.NewFromInt(fraction)
	return d.Mul(f).Round(0).Div(f)
}

// decimalPlaces reports n when fraction is 10^n.
func decimalPlaces(fraction int64) (int32, bool) {
	var n int32
	for fraction > 1 {
		if fraction%10 != 0 {
			return 0, false
		}
		fraction /= 10
		n++
	}
	return n, fraction == 1
}

// Quantize rounds d to this commodity's SCU.
func (c *Commodity) Quantize(d decimal.Decimal) decimal.Decimal {
	return Quantize(d, c.SCU())
}
