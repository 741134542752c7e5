// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffectiveDate(t *testing.T) {
	cfg := testACHConfig()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := []struct {
		name     string
		now      time.Time
		delay    int
		expected string
	}{
		{"before cutoff", time.Date(2020, time.October, 13, 10, 0, 0, 0, ny), 0, "2020-10-14"},
		{"after cutoff", time.Date(2020, time.October, 13, 16, 30, 0, 0, ny), 0, "2020-10-15"},
		{"at cutoff", time.Date(2020, time.October, 13, 16, 0, 0, 0, ny), 0, "2020-10-15"},
		{"friday", time.Date(2020, time.October, 16, 10, 0, 0, 0, ny), 0, "2020-10-19"},
		{"friday after cutoff", time.Date(2020, time.October, 16, 17, 0, 0, 0, ny), 0, "2020-10-20"},
		{"delayed", time.Date(2020, time.October, 13, 10, 0, 0, 0, ny), 2, "2020-10-16"},
		{"utc evening is still tuesday in new york", time.Date(2020, time.October, 14, 1, 0, 0, 0, time.UTC), 0, "2020-10-15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EffectiveDate(cfg, tc.now, tc.delay)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got.Format(dateFormat))
		})
	}
}

func TestEffectiveDate__zeroOffset(t *testing.T) {
	cfg := testACHConfig()
	cfg.EffectiveDateOffset = 0

	// saturday rolls forward to monday
	got, err := EffectiveDate(cfg, time.Date(2020, time.October, 17, 15, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Equal(t, "2020-10-19", got.Format(dateFormat))
}

func TestEffectiveDate__badCutoff(t *testing.T) {
	cfg := testACHConfig()
	cfg.Cutoff.Time = "4pm"
	if _, err := EffectiveDate(cfg, tuesday, 0); err == nil {
		t.Error("expected error")
	}
}

func TestAddBankingDays(t *testing.T) {
	friday := time.Date(2020, time.October, 16, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2020-10-16", AddBankingDays(friday, 0).Format(dateFormat))
	require.Equal(t, "2020-10-19", AddBankingDays(friday, 1).Format(dateFormat))
	require.Equal(t, "2020-10-20", AddBankingDays(friday, 2).Format(dateFormat))
}
