// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package money

import (
	"encoding/json"
	"testing"
)

func TestAmount__ParseAmount(t *testing.T) {
	cases := map[string]int64{
		"USD 12.53":  1253,
		"USD 12":     1200,
		"USD 0.025":  3,
		"USD 10.004": 1000,
	}
	for in, expected := range cases {
		amt, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if amt.Cents() != expected {
			t.Errorf("%s: got %d", in, amt.Cents())
		}
	}

	bad := []string{"", "USD", "12.00", "ZZZ 1.00", "USD abc", "USD -1.00"}
	for i := range bad {
		if _, err := ParseAmount(bad[i]); err == nil {
			t.Errorf("expected error for %q", bad[i])
		}
	}
}

func TestAmount__Plus(t *testing.T) {
	amt, err := USD(150).Plus(USD(275))
	if err != nil {
		t.Fatal(err)
	}
	if amt.String() != "USD 4.25" {
		t.Errorf("got %s", amt)
	}

	gbp, _ := ParseAmount("GBP 1.00")
	if _, err := amt.Plus(gbp); err != ErrDifferentCurrencies {
		t.Errorf("expected ErrDifferentCurrencies: %v", err)
	}
}

func TestAmount__JSON(t *testing.T) {
	bs, err := json.Marshal(USD(1999))
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != `"USD 19.99"` {
		t.Errorf("got %s", bs)
	}

	var wrapper struct {
		Amount Amount `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": "USD 5.01"}`), &wrapper); err != nil {
		t.Fatal(err)
	}
	if !wrapper.Amount.Equal(USD(501)) {
		t.Errorf("got %s", wrapper.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount": 5}`), &wrapper); err == nil {
		t.Error("expected error")
	}
}

func TestAmount__Dollars(t *testing.T) {
	amt := USD(12345)
	if amt.Dollars() != 123.45 {
		t.Errorf("got %v", amt.Dollars())
	}
	if amt.Symbol() != "USD" {
		t.Errorf("got %s", amt.Symbol())
	}
}
