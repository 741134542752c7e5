// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package money

import (
	"errors"
	"testing"
)

func TestToCents(t *testing.T) {
	cases := map[float64]int64{
		0:       0,
		0.1:     10,
		0.29:    29,
		1.005:   101,
		19.999:  2000,
		1234.56: 123456,
	}
	for dollars, expected := range cases {
		c, err := ToCents(dollars)
		if err != nil {
			t.Fatal(err)
		}
		if c != expected {
			t.Errorf("%v: got %d, expected %d", dollars, c, expected)
		}
	}

	if _, err := ToCents(-0.01); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for c := int64(0); c < 100000; c += 7 {
		got, err := ToCents(ToDollars(c))
		if err != nil {
			t.Fatal(err)
		}
		if got != c {
			t.Fatalf("round trip of %d returned %d", c, got)
		}
	}
}

func TestAddDollars(t *testing.T) {
	if v := AddDollars(0.10, 0.20); v != 0.30 {
		t.Errorf("got %v", v)
	}
	total := 0.0
	for i := 0; i < 10; i++ {
		total = AddDollars(total, 0.1)
	}
	if total != 1.0 {
		t.Errorf("got %v", total)
	}
}

func TestArithmetic(t *testing.T) {
	if v := SubtractDollars(1.00, 1.25); v != -0.25 {
		t.Errorf("SubtractDollars: %v", v)
	}
	if v := MultiplyDollars(19.99, 3); v != 59.97 {
		t.Errorf("MultiplyDollars: %v", v)
	}
	if v := PercentOf(200, 2.95); v != 5.90 {
		t.Errorf("PercentOf: %v", v)
	}
	if v := Round(10.555); v != 10.56 {
		t.Errorf("Round: %v", v)
	}
	if !Equals(0.1+0.2, 0.3) {
		t.Error("expected equal")
	}
	if !IsZero(0.001) || IsZero(0.01) {
		t.Error("IsZero")
	}
	if !IsPositive(0.01) || IsPositive(0) || IsPositive(-1) {
		t.Error("IsPositive")
	}
}

func TestFormat(t *testing.T) {
	cases := map[float64]string{
		0:          "$0.00",
		0.05:       "$0.05",
		12.5:       "$12.50",
		1234.56:    "$1,234.56",
		1234567.89: "$1,234,567.89",
		-1:         "-$1.00",
	}
	for dollars, expected := range cases {
		if v := Format(dollars); v != expected {
			t.Errorf("%v: got %q, expected %q", dollars, v, expected)
		}
	}
}
