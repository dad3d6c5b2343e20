// Package types provides money representations shared by storage and feeds.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorScale is the number of minor units in one major currency unit.
const MinorScale = 2

// Money is an exact decimal amount in major units, used at system edges
// (feed payloads, URL price bounds).
type Money = decimal.Decimal

// MinorUnits is a monetary value in minor currency units (kopecks, cents).
// Prices are stored this way so comparisons in the document store stay integer.
type MinorUnits int64

// ParseMoney parses a major-unit decimal string such as "199.90".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

// FromMoney converts a major-unit amount to minor units, rounding half away from zero.
func FromMoney(m Money) MinorUnits {
	return MinorUnits(m.Shift(MinorScale).Round(0).IntPart())
}

// FromMajor converts whole major units to minor units.
func FromMajor(major int64) MinorUnits {
	return FromMoney(decimal.NewFromInt(major))
}

// Money returns the amount in major units.
func (m MinorUnits) Money() Money {
	return decimal.New(int64(m), -MinorScale)
}

// String renders the amount in major units with trailing zeros trimmed ("100", "99.5").
func (m MinorUnits) String() string {
	return m.Money().String()
}

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsPositive() bool { return m > 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }

// DiscountPercent returns the whole-percent markdown from oldPrice to price.
// Non-markdowns and a non-positive oldPrice yield zero.
func DiscountPercent(oldPrice, price MinorUnits) int {
	if oldPrice <= 0 || price >= oldPrice {
		return 0
	}
	hundred := decimal.NewFromInt(100)
	drop := decimal.NewFromInt(int64(oldPrice - price))
	pct := drop.Mul(hundred).Div(decimal.NewFromInt(int64(oldPrice))).Round(0)
	return int(pct.IntPart())
}
