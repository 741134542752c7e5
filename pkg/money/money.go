// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package money converts dollar values into integer cents before doing any
// arithmetic so repeated operations never accumulate floating point drift.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// ErrNegativeAmount is returned when a negative dollar value is converted into cents.
	ErrNegativeAmount = errors.New("negative amount")

	hundred = decimal.New(100, 0)

	printer = message.NewPrinter(language.English)
)

// ToCents converts a non-negative dollar value into cents, rounding half away from zero.
func ToCents(dollars float64) (int64, error) {
	if dollars < 0 {
		return 0, fmt.Errorf("money: %.2f: %w", dollars, ErrNegativeAmount)
	}
	return cents(dollars), nil
}

// ToDollars converts cents back into a dollar value with two decimals.
func ToDollars(c int64) float64 {
	f, _ := decimal.New(c, -2).Float64()
	return f
}

// cents converts without the sign check so intermediate results (like subtraction)
// can be negative.
func cents(dollars float64) int64 {
	return decimal.NewFromFloat(dollars).Mul(hundred).Round(0).IntPart()
}

func AddDollars(a, b float64) float64 {
	return ToDollars(cents(a) + cents(b))
}

// SubtractDollars returns a-b which may be negative.
func SubtractDollars(a, b float64) float64 {
	return ToDollars(cents(a) - cents(b))
}

// MultiplyDollars multiplies an amount by factor and rounds to the nearest cent.
func MultiplyDollars(dollars, factor float64) float64 {
	c := decimal.New(cents(dollars), 0).Mul(decimal.NewFromFloat(factor)).Round(0).IntPart()
	return ToDollars(c)
}

// PercentOf returns percent (0-100) of dollars rounded to the nearest cent.
func PercentOf(dollars, percent float64) float64 {
	c := decimal.New(cents(dollars), 0).Mul(decimal.NewFromFloat(percent)).Div(hundred).Round(0).IntPart()
	return ToDollars(c)
}

func Round(dollars float64) float64 {
	return ToDollars(cents(dollars))
}

// Equals compares two dollar values by their cents.
func Equals(a, b float64) bool {
	return cents(a) == cents(b)
}

func IsZero(dollars float64) bool {
	return cents(dollars) == 0
}

func IsPositive(dollars float64) bool {
	return cents(dollars) > 0
}

// Format renders dollars for display.
// Examples:
//   $1,234.56
//   -$0.05
func Format(dollars float64) string {
	return FormatCents(cents(dollars))
}

// FormatCents renders an integer cent value the same way Format does.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", c/100), c%100)
}
