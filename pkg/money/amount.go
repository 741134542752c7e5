// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	// ErrDifferentCurrencies is returned when an operation on an Amount instance is attempted with another Amount of a different currency (symbol).
	ErrDifferentCurrencies = errors.New("different currencies")
)

// Amount represents cents of a particular currency.
type Amount struct {
	cents  int64
	symbol string // ISO 4217, i.e. USD, GBP
}

// USD returns an Amount of c cents in US dollars.
func USD(c int64) Amount {
	return Amount{cents: c, symbol: "USD"}
}

// Cents returns the amount as an integer.
// Example: "USD 1.11" returns 111
func (a Amount) Cents() int64 {
	return a.cents
}

func (a Amount) Dollars() float64 {
	return ToDollars(a.cents)
}

func (a Amount) Symbol() string {
	return a.symbol
}

func (a Amount) Validate() error {
	if a.cents < 0 {
		return ErrNegativeAmount
	}
	_, err := currency.ParseISO(a.symbol)
	return err
}

func (a Amount) Equal(other Amount) bool {
	return a.symbol == other.symbol && a.cents == other.cents
}

// Plus returns an Amount of adding both Amount instances together.
// Currency symbols must match for Plus to return without errors.
func (a Amount) Plus(other Amount) (Amount, error) {
	if a.symbol != other.symbol {
		return a, ErrDifferentCurrencies
	}
	return Amount{cents: a.cents + other.cents, symbol: a.symbol}, nil
}

// String returns an amount formatted with the currency.
// Examples:
//   USD 12.53
//   GBP 4.02
func (a Amount) String() string {
	sym := a.symbol
	if sym == "" {
		sym = "USD"
	}
	return fmt.Sprintf("%s %s", sym, decimal.New(a.cents, -2).StringFixed(2))
}

// ParseAmount attempts to read a string as a valid currency symbol and number.
// Values with more than two decimals are rounded to the nearest cent.
// Examples:
//   USD 12.53
func ParseAmount(in string) (Amount, error) {
	parts := strings.Fields(in)
	if len(parts) != 2 {
		return Amount{}, fmt.Errorf("invalid Amount format: %q", in)
	}
	sym, err := currency.ParseISO(parts[0])
	if err != nil {
		return Amount{}, err
	}
	d, err := decimal.NewFromString(parts[1])
	if err != nil {
		return Amount{}, fmt.Errorf("invalid Amount number %q: %v", parts[1], err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("unable to read %s: %w", parts[1], ErrNegativeAmount)
	}
	return Amount{
		cents:  d.Mul(hundred).Round(0).IntPart(),
		symbol: sym.String(),
	}, nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	amt, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = amt
	return nil
}
