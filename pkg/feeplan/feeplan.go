// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package feeplan calculates the service fee charged for an installment payment plan.
//
// The fee starts from a base amount banded by the plan total and is scaled by how
// long the plan runs and how much of the total is paid up front. Plans that run
// longer than eleven months get a duration multiplier of zero which callers treat
// as a rejected plan.
package feeplan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// ParseFrequency reads a case-insensitive frequency name.
func ParseFrequency(in string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(in))); f {
	case Weekly, Biweekly, Monthly:
		return f, nil
	}
	return "", fmt.Errorf("unknown frequency %q: %w", in, ErrInvalidPlan)
}

var ErrInvalidPlan = errors.New("invalid payment plan")

// MaxMonths is the longest plan which is given a non-zero duration multiplier.
const MaxMonths = 11

type band struct {
	below int64 // exclusive upper bound in dollars, zero means unbounded
	fee   int64
}

var baseFeeBands = []band{
	{below: 500, fee: 25},
	{below: 1000, fee: 50},
	{below: 2500, fee: 75},
	{below: 5000, fee: 125},
	{below: 10000, fee: 200},
	{below: 0, fee: 350},
}

// Result holds the computed fee along with every value which produced it.
type Result struct {
	Fee                   float64 `json:"fee"`
	BaseFee               float64 `json:"baseFee"`
	Months                int     `json:"months"`
	DurationMultiplier    float64 `json:"durationMultiplier"`
	DownPaymentMultiplier float64 `json:"downPaymentMultiplier"`
	DownPaymentPercent    float64 `json:"downPaymentPercent"`
}

// Valid returns false for plans longer than MaxMonths.
func (r *Result) Valid() bool {
	return r != nil && r.DurationMultiplier > 0
}

// Calculate returns the service fee for a plan of installments at freq after downPayment is paid.
func Calculate(total, downPayment float64, installments int, freq Frequency) (*Result, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total must be positive: %w", ErrInvalidPlan)
	}
	if downPayment < 0 {
		return nil, fmt.Errorf("down payment must not be negative: %w", ErrInvalidPlan)
	}
	if downPayment >= total {
		return nil, fmt.Errorf("down payment must be less than the total: %w", ErrInvalidPlan)
	}
	if installments < 1 {
		return nil, fmt.Errorf("at least one installment is required: %w", ErrInvalidPlan)
	}
	months, err := Months(installments, freq)
	if err != nil {
		return nil, err
	}

	totalDec := decimal.NewFromFloat(total)
	base := BaseFee(totalDec)
	duration := DurationMultiplier(months)
	down := decimal.New(1, 0).Sub(decimal.NewFromFloat(downPayment).Div(totalDec))

	fee := base.Mul(duration).Mul(down).Round(2)

	res := &Result{Months: months}
	res.Fee, _ = fee.Float64()
	res.BaseFee, _ = base.Float64()
	res.DurationMultiplier, _ = duration.Float64()
	res.DownPaymentMultiplier, _ = down.Round(4).Float64()
	res.DownPaymentPercent, _ = decimal.NewFromFloat(downPayment).Div(totalDec).Mul(decimal.New(100, 0)).Round(2).Float64()
	return res, nil
}

// BaseFee returns the banded fee for a plan total. Band lower bounds are inclusive.
func BaseFee(total decimal.Decimal) decimal.Decimal {
	for i := range baseFeeBands {
		b := baseFeeBands[i]
		if b.below == 0 || total.LessThan(decimal.New(b.below, 0)) {
			return decimal.New(b.fee, 0)
		}
	}
	return decimal.Zero
}

// Months converts an installment count into an equivalent number of months.
// Weekly and biweekly installments are converted through days (7 or 14 per
// installment) divided by 30 and rounded half up, with a minimum of one month.
func Months(installments int, freq Frequency) (int, error) {
	var days int64
	switch freq {
	case Monthly:
		return installments, nil
	case Weekly:
		days = int64(installments) * 7
	case Biweekly:
		days = int64(installments) * 14
	default:
		return 0, fmt.Errorf("unknown frequency %q: %w", freq, ErrInvalidPlan)
	}
	months := int(decimal.New(days, 0).Div(decimal.New(30, 0)).Round(0).IntPart())
	if months < 1 {
		months = 1
	}
	return months, nil
}

// DurationMultiplier scales the base fee by plan length.
func DurationMultiplier(months int) decimal.Decimal {
	switch {
	case months <= 3:
		return decimal.New(1, 0)
	case months <= 6:
		return decimal.New(175, -2)
	case months <= MaxMonths:
		return decimal.New(25, -1)
	}
	return decimal.Zero
}
