// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings,
// splitting totals into monthly payments and computing rounded ratios.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	// Only plain digits with at most one separator; decimal.NewFromString would
	// otherwise accept signs and exponents.
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return 0, ErrInvalidAmount
		}
	}
	if dots > 1 || s == "." {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.IsInteger() || cents.Cmp(decimal.NewFromInt(maxSafeCents)) > 0 {
		return 0, ErrInvalidAmount
	}
	v := cents.IntPart()
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

const maxSafeCents = (1<<63 - 1) / 100

// SplitEvenly divides a total into a per-month payment, rounding half-up to the cent.
func SplitEvenly(total Money, months int) (Money, error) {
	if months < 1 {
		return Money{}, ErrInvalidDuration
	}
	per := decimal.NewFromInt(total.Cents).Div(decimal.NewFromInt(int64(months))).Round(0)
	return Money{Cents: per.IntPart()}, nil
}

// Times multiplies the amount by n.
func (m Money) Times(n int) Money {
	return Money{Cents: m.Cents * int64(n)}
}

// Add sums two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub subtracts o from m.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Amount returns the value in major units as a float64 for display purposes.
// Note: Use cents for calculations to avoid floating-point precision issues.
func (m Money) Amount() float64 {
	f, _ := decimal.New(m.Cents, -2).Float64()
	return f
}

// Decimal returns the value in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Percent returns part/whole*100 rounded to the given number of places with
// banker's rounding. A zero whole yields 0.
func Percent(part, whole int64, places int32) float64 {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).RoundBank(places)
	f, _ := p.Float64()
	return f
}
