// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"errors"
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"

	"github.com/moov-io/ach"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cfg := config.Returns{}
	cases := map[string]settlement.ReturnKind{
		"C01": settlement.KindCorrection,
		"c07": settlement.KindCorrection,
		"R01": settlement.KindSoft,
		"R09": settlement.KindSoft,
		"R02": settlement.KindHard,
		"R03": settlement.KindHard,
		"R10": settlement.KindHard,
	}
	for code, kind := range cases {
		if got := Classify(cfg, code); got != kind {
			t.Errorf("%s: got %s, expected %s", code, got, kind)
		}
	}

	cfg.SoftReturnCodes = []string{"R02"}
	require.Equal(t, settlement.KindSoft, Classify(cfg, "R02"))
	require.Equal(t, settlement.KindHard, Classify(cfg, "R01"))
}

func TestParseCorrection(t *testing.T) {
	cases := []struct {
		code, data string
		expected   settlement.Correction
	}{
		{"C01", "1918171614", settlement.Correction{AccountNumber: "1918171614"}},
		{"C02", "121042882", settlement.Correction{RoutingNumber: "121042882"}},
		{"C03", "121042882   1918171614", settlement.Correction{RoutingNumber: "121042882", AccountNumber: "1918171614"}},
		{"C05", "37", settlement.Correction{TransactionCode: ach.SavingsDebit}},
		{"C06", "1918171614        37", settlement.Correction{AccountNumber: "1918171614", TransactionCode: ach.SavingsDebit}},
		{"C07", "121042882 1918171614 27", settlement.Correction{RoutingNumber: "121042882", AccountNumber: "1918171614", TransactionCode: ach.CheckingDebit}},
		{"C07", "1210428821918171614       27", settlement.Correction{RoutingNumber: "121042882", AccountNumber: "1918171614", TransactionCode: ach.CheckingDebit}},
	}
	for _, tc := range cases {
		got, err := ParseCorrection(tc.code, tc.data)
		require.NoError(t, err, "%s %q", tc.code, tc.data)
		require.Equal(t, tc.expected, got, "%s %q", tc.code, tc.data)
	}
}

func TestParseCorrection__errors(t *testing.T) {
	_, err := ParseCorrection("C04", "JANE DOE")
	require.True(t, errors.Is(err, ErrUnsupportedCorrection))

	bad := []struct{ code, data string }{
		{"C01", ""},
		{"C02", "12345"},
		{"C03", "121042882"},
		{"C05", "99"},
		{"C06", "1918171614"},
		{"C07", "short"},
	}
	for _, tc := range bad {
		if _, err := ParseCorrection(tc.code, tc.data); err == nil {
			t.Errorf("%s %q: expected error", tc.code, tc.data)
		}
	}
}
