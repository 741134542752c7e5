// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"encoding/json"
)

type LedgerStatus string

const (
	LedgerStatusWritten  LedgerStatus = "written"
	LedgerStatusDeferred LedgerStatus = "deferred"
	LedgerStatusFailed   LedgerStatus = "failed"
	LedgerStatusSkipped  LedgerStatus = "skipped"
)

// LedgerOutcome is what happened to a payment's ledger entry. Its payload depends on
// the status: an entry id, a queue id, an error or a reason for skipping.
type LedgerOutcome struct {
	status LedgerStatus
	value  string
}

func LedgerWritten(entryID string) LedgerOutcome {
	return LedgerOutcome{status: LedgerStatusWritten, value: entryID}
}

func LedgerDeferred(queueID string) LedgerOutcome {
	return LedgerOutcome{status: LedgerStatusDeferred, value: queueID}
}

func LedgerFailed(err error) LedgerOutcome {
	out := LedgerOutcome{status: LedgerStatusFailed}
	if err != nil {
		out.value = err.Error()
	}
	return out
}

func LedgerSkipped(reason string) LedgerOutcome {
	return LedgerOutcome{status: LedgerStatusSkipped, value: reason}
}

func (o LedgerOutcome) Status() LedgerStatus {
	if o.status == "" {
		return LedgerStatusSkipped
	}
	return o.status
}

// Reference is the ledger entry id or queue id.
func (o LedgerOutcome) Reference() string {
	if o.status == LedgerStatusWritten || o.status == LedgerStatusDeferred {
		return o.value
	}
	return ""
}

func (o LedgerOutcome) ErrorMessage() string {
	if o.status == LedgerStatusFailed {
		return o.value
	}
	return ""
}

func (o LedgerOutcome) Reason() string {
	if o.Status() == LedgerStatusSkipped {
		return o.value
	}
	return ""
}

func (o LedgerOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status    LedgerStatus `json:"status"`
		Reference string       `json:"reference,omitempty"`
		Error     string       `json:"error,omitempty"`
		Reason    string       `json:"reason,omitempty"`
	}{
		Status:    o.Status(),
		Reference: o.Reference(),
		Error:     o.ErrorMessage(),
		Reason:    o.Reason(),
	})
}

type EngagementResult struct {
	Key        string `json:"key"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	NewTypeKey string `json:"newTypeKey,omitempty"`
}

// Result is the outcome of processing a Command. A failed Result never has a
// Payment and its ledger outcome is always skipped.
type Result struct {
	success bool
	err     string

	payment              *Payment
	transactionID        string
	gatewayTransactionID string

	ledger      LedgerOutcome
	warning     string
	engagements []EngagementResult

	gatewayResponse    map[string]interface{}
	receiptSent        bool
	paymentMethodSaved bool
}

// Failed returns the Result of a payment that didn't go through.
func Failed(err string, transactionID string) *Result {
	return failedAfterCharge(err, transactionID, "")
}

func failedAfterCharge(err, transactionID, gatewayTransactionID string) *Result {
	return &Result{
		err:                  err,
		transactionID:        transactionID,
		gatewayTransactionID: gatewayTransactionID,
		ledger:               LedgerSkipped("payment failed"),
	}
}

func (r *Result) Success() bool { return r.success }
func (r *Result) ErrorMessage() string { return r.err }
func (r *Result) Payment() *Payment { return r.payment }
func (r *Result) TransactionID() string { return r.transactionID }
func (r *Result) GatewayTransactionID() string { return r.gatewayTransactionID }
func (r *Result) Ledger() LedgerOutcome { return r.ledger }
func (r *Result) Warning() string { return r.warning }
func (r *Result) ReceiptSent() bool { return r.receiptSent }
func (r *Result) PaymentMethodSaved() bool { return r.paymentMethodSaved }
func (r *Result) GatewayResponse() map[string]interface{} { return r.gatewayResponse }

func (r *Result) Engagements() []EngagementResult {
	return append([]EngagementResult(nil), r.engagements...)
}

func (r *Result) HasEngagementFailures() bool {
	for i := range r.engagements {
		if !r.engagements[i].Success {
			return true
		}
	}
	return false
}

func (r *Result) HasWarnings() bool {
	return r.warning != ""
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success              bool                   `json:"success"`
		Error                string                 `json:"error,omitempty"`
		Payment              *Payment               `json:"payment,omitempty"`
		TransactionID        string                 `json:"transactionId"`
		GatewayTransactionID string                 `json:"gatewayTransactionId,omitempty"`
		Ledger               LedgerOutcome          `json:"ledger"`
		Warning              string                 `json:"warning,omitempty"`
		Engagements          []EngagementResult     `json:"engagements,omitempty"`
		GatewayResponse      map[string]interface{} `json:"gatewayResponse,omitempty"`
		ReceiptSent          bool                   `json:"receiptSent"`
		PaymentMethodSaved   bool                   `json:"paymentMethodSaved"`
	}{
		Success:              r.success,
		Error:                r.err,
		Payment:              r.payment,
		TransactionID:        r.transactionID,
		GatewayTransactionID: r.gatewayTransactionID,
		Ledger:               r.ledger,
		Warning:              r.warning,
		Engagements:          r.engagements,
		GatewayResponse:      r.gatewayResponse,
		ReceiptSent:          r.receiptSent,
		PaymentMethodSaved:   r.paymentMethodSaved,
	})
}

// outcome accumulates the steps of a successful charge before building its Result.
type outcome struct {
	transactionID        string
	gatewayTransactionID string
	gatewayResponse      map[string]interface{}

	payment     *Payment
	ledger      LedgerOutcome
	warnings    []string
	engagements []EngagementResult

	receiptSent        bool
	paymentMethodSaved bool
}

func (o *outcome) warn(msg string) {
	o.warnings = append(o.warnings, msg)
}

func (o *outcome) result() *Result {
	r := &Result{
		success:              true,
		payment:              o.payment,
		transactionID:        o.transactionID,
		gatewayTransactionID: o.gatewayTransactionID,
		ledger:               o.ledger,
		engagements:          o.engagements,
		gatewayResponse:      o.gatewayResponse,
		receiptSent:          o.receiptSent,
		paymentMethodSaved:   o.paymentMethodSaved,
	}
	for i := range o.warnings {
		if i > 0 {
			r.warning += "; "
		}
		r.warning += o.warnings[i]
	}
	return r
}
