// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerOutcome(t *testing.T) {
	var zero LedgerOutcome
	require.Equal(t, LedgerStatusSkipped, zero.Status())

	written := LedgerWritten("55")
	require.Equal(t, "55", written.Reference())
	require.Empty(t, written.ErrorMessage())
	require.Empty(t, written.Reason())

	deferred := LedgerDeferred("queue-1")
	require.Equal(t, LedgerStatusDeferred, deferred.Status())
	require.Equal(t, "queue-1", deferred.Reference())

	failed := LedgerFailed(errors.New("timeout"))
	require.Equal(t, "timeout", failed.ErrorMessage())
	require.Empty(t, failed.Reference())

	skipped := LedgerSkipped("ledger disabled")
	require.Equal(t, "ledger disabled", skipped.Reason())
}

func TestResult__failed(t *testing.T) {
	r := Failed("card declined", "txn-1")
	require.False(t, r.Success())
	require.Equal(t, "card declined", r.ErrorMessage())
	require.Equal(t, LedgerStatusSkipped, r.Ledger().Status())
	require.Nil(t, r.Payment())
	require.False(t, r.HasWarnings())

	r = failedAfterCharge("not saved", "txn-1", "gw-1")
	require.Equal(t, "gw-1", r.GatewayTransactionID())
}

func TestResult__warningsAndEngagements(t *testing.T) {
	out := &outcome{
		transactionID: "txn-1",
		ledger:        LedgerWritten("55"),
		engagements: []EngagementResult{
			{Key: "501", Success: true},
			{Key: "502", Error: "not found"},
		},
	}
	out.warn("first")
	out.warn("second")

	r := out.result()
	require.True(t, r.Success())
	require.Equal(t, "first; second", r.Warning())
	require.True(t, r.HasWarnings())
	require.True(t, r.HasEngagementFailures())

	// callers can't change the result
	r.Engagements()[0].Success = false
	require.True(t, r.Engagements()[0].Success)
}

func TestResult__MarshalJSON(t *testing.T) {
	r := (&outcome{transactionID: "txn-1", ledger: LedgerDeferred("queue-1"), receiptSent: true}).result()

	bs, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bs, &out))
	require.Equal(t, true, out["success"])
	require.Equal(t, "txn-1", out["transactionId"])
	require.Equal(t, true, out["receiptSent"])

	ledger, ok := out["ledger"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "deferred", ledger["status"])
}
