// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/practicecs"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/ach"
	"github.com/stretchr/testify/require"
)

func cardCommand(t *testing.T, mutate func(p *CardPayment)) *Command {
	t.Helper()
	p := CardPayment{Details: testDetails(), SendReceipt: true, Card: testCard()}
	if mutate != nil {
		mutate(&p)
	}
	cmd, err := NewCardPayment(p)
	require.NoError(t, err)
	return cmd
}

func TestOrchestrator__card(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	result, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.NoError(t, err)
	require.True(t, result.Success(), result.ErrorMessage())
	require.Equal(t, "card-txn-1", result.GatewayTransactionID())
	require.Equal(t, LedgerStatusWritten, result.Ledger().Status())
	require.Equal(t, "ledger-txn-1", result.Ledger().Reference())
	require.True(t, result.ReceiptSent())
	require.False(t, result.PaymentMethodSaved())
	require.False(t, result.HasWarnings())

	require.Len(t, tp.cards.Charges, 1)
	charge := tp.cards.Charges[0]
	require.Equal(t, int64(10300), charge.Amount)
	require.Equal(t, "4111111111111111", charge.Card.Number)
	require.False(t, charge.Tokenize)

	// the ledger gets the payment without its fee
	require.Len(t, tp.ledger.entries, 1)
	entry := tp.ledger.entries[0]
	require.Equal(t, "txn-1", entry.Reference)
	require.Equal(t, 1001, entry.ClientKey)
	require.Equal(t, int64(10000), entry.Amount)
	require.Equal(t, MethodCreditCard, entry.Method)
	require.Empty(t, entry.Distributions)

	require.Len(t, tp.receipts.Sent, 1)
	require.Equal(t, "$103.00", tp.receipts.Sent[0].Total)
	require.Equal(t, "1111", tp.receipts.Sent[0].LastFour)

	p, err := tp.repo.GetPayment(ctx, "txn-1")
	require.NoError(t, err)
	require.Equal(t, int64(10000), p.Amount)
	require.Equal(t, int64(300), p.Fee)
	require.Equal(t, int64(10300), p.Total)
	require.Equal(t, "card-txn-1", p.GatewayTransactionID)
}

func TestOrchestrator__idempotent(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	first, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.NoError(t, err)
	require.True(t, first.Success())

	second, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.NoError(t, err)
	require.True(t, second.Success())
	require.Equal(t, first.GatewayTransactionID(), second.GatewayTransactionID())
	require.Equal(t, first.Payment().ID, second.Payment().ID)
	require.Equal(t, LedgerStatusSkipped, second.Ledger().Status())

	// charged and recorded once
	require.Len(t, tp.cards.Charges, 1)
	require.Len(t, tp.ledger.entries, 1)
	require.Len(t, tp.receipts.Sent, 1)
}

func TestOrchestrator__inProgress(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	_, claimed, err := tp.repo.ClaimAttempt(ctx, "txn-1")
	require.NoError(t, err)
	require.True(t, claimed)

	result, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.Equal(t, ErrChargeInProgress, err)
	require.Nil(t, result)
	require.Empty(t, tp.cards.Charges)

	unlock, ok := tp.orchestrator.locks.TryLock("txn-2")
	require.True(t, ok)
	defer unlock()

	_, err = tp.orchestrator.Process(ctx, cardCommand(t, func(p *CardPayment) { p.TransactionID = "txn-2" }))
	require.Equal(t, ErrChargeInProgress, err)
}

func TestOrchestrator__declined(t *testing.T) {
	tp := setupPayments(t)
	tp.cards.Response = &CardChargeResponse{Approved: false, Message: "insufficient funds"}
	ctx := context.Background()

	result, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Contains(t, result.ErrorMessage(), "insufficient funds")
	require.Equal(t, LedgerStatusSkipped, result.Ledger().Status())
	require.Empty(t, tp.ledger.entries)
	require.Empty(t, tp.receipts.Sent)

	_, err = tp.repo.GetPayment(ctx, "txn-1")
	require.Equal(t, ErrNotFound, err)

	// retrying a failed transaction id returns the same failure
	tp.cards.Response = nil
	again, err := tp.orchestrator.Process(ctx, cardCommand(t, nil))
	require.NoError(t, err)
	require.False(t, again.Success())
	require.Equal(t, result.ErrorMessage(), again.ErrorMessage())
	require.Len(t, tp.cards.Charges, 1)
}

func TestOrchestrator__gatewayError(t *testing.T) {
	tp := setupPayments(t)
	tp.cards.Err = errBoom

	result, err := tp.orchestrator.Process(context.Background(), cardCommand(t, nil))
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Contains(t, result.ErrorMessage(), "boom")
}

func TestOrchestrator__ledgerFailure(t *testing.T) {
	tp := setupPayments(t)
	tp.ledger.err = errors.New("connection refused")

	result, err := tp.orchestrator.Process(context.Background(), cardCommand(t, nil))
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, LedgerStatusFailed, result.Ledger().Status())
	require.Equal(t, "connection refused", result.Ledger().ErrorMessage())
	require.True(t, result.HasWarnings())

	alerts := tp.alerts.Criticals()
	require.Len(t, alerts, 1)
	require.Equal(t, notify.Ledger, alerts[0].Topic)
	require.Contains(t, alerts[0].Body, "$100.00")
}

func TestOrchestrator__ledgerDeferred(t *testing.T) {
	tp := setupPayments(t)
	tp.ledger.status = practicecs.StatusDeferred

	result, err := tp.orchestrator.Process(context.Background(), cardCommand(t, nil))
	require.NoError(t, err)
	require.Equal(t, LedgerStatusDeferred, result.Ledger().Status())
}

func TestOrchestrator__ledgerSkipped(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	d := testDetails()
	d.TransactionID = "txn-unapplied"
	d.SelectedInvoices = nil
	cmd, err := NewAdminCardPayment(AdminCardPayment{Details: d, LeaveUnapplied: true, Card: testCard()})
	require.NoError(t, err)

	result, err := tp.orchestrator.Process(ctx, cmd)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Equal(t, LedgerStatusSkipped, result.Ledger().Status())
	require.Equal(t, "payment left unapplied", result.Ledger().Reason())
	require.False(t, result.ReceiptSent())

	noClient := cardCommand(t, func(p *CardPayment) {
		p.TransactionID = "txn-no-client"
		p.ClientKey = 0
	})
	result, err = tp.orchestrator.Process(ctx, noClient)
	require.NoError(t, err)
	require.Equal(t, "no client", result.Ledger().Reason())
	require.Empty(t, tp.ledger.entries)

	tp.orchestrator.ledger = nil
	result, err = tp.orchestrator.Process(ctx, cardCommand(t, func(p *CardPayment) { p.TransactionID = "txn-disabled" }))
	require.NoError(t, err)
	require.Equal(t, "ledger disabled", result.Ledger().Reason())
}

func TestOrchestrator__distributions(t *testing.T) {
	tp := setupPayments(t)

	cmd := cardCommand(t, func(p *CardPayment) {
		p.Invoices = []Invoice{
			{Number: "INV-1", ClientKey: 1001, Amount: 6000},
			{Number: "INV-2", ClientKey: 1002, Amount: 3000},
			{Number: "INV-3", ClientKey: 1002, Amount: 1000},
			{Number: "INV-4", ClientKey: 1003, Amount: 5000},
		}
		p.SelectedInvoices = []string{"INV-1", "INV-2", "INV-3"}
	})
	result, err := tp.orchestrator.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, result.Success())

	require.Len(t, tp.ledger.entries, 1)
	require.Equal(t, []practicecs.Distribution{
		{ClientKey: 1001, Amount: 6000},
		{ClientKey: 1002, Amount: 4000},
	}, tp.ledger.entries[0].Distributions)

	// invoices which don't add up to the payment go to the primary client
	partial := cardCommand(t, func(p *CardPayment) {
		p.TransactionID = "txn-partial"
		p.Invoices[1].ClientKey = 1002
		p.Amount = 5000
	})
	require.Empty(t, distributions(partial))
}

func TestOrchestrator__engagements(t *testing.T) {
	tp := setupPayments(t)
	tp.engagements.failing = map[string]error{"502": errors.New("engagement not found")}
	ctx := context.Background()

	require.NoError(t, tp.repo.AcceptEngagement(ctx, EngagementAcceptance{Key: "503", TransactionID: "txn-0", NewTypeKey: "7"}))

	cmd := cardCommand(t, func(p *CardPayment) { p.Engagements = []string{"501", "502", "503"} })
	result, err := tp.orchestrator.Process(ctx, cmd)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.True(t, result.HasEngagementFailures())

	engagements := result.Engagements()
	require.Len(t, engagements, 3)
	require.Equal(t, EngagementResult{Key: "501", Success: true, NewTypeKey: "3"}, engagements[0])
	require.Equal(t, "502", engagements[1].Key)
	require.False(t, engagements[1].Success)
	require.Equal(t, "engagement not found", engagements[1].Error)
	require.Equal(t, EngagementResult{Key: "503", Success: true, NewTypeKey: "7"}, engagements[2])

	// 503 was already accepted
	require.Equal(t, []string{"501"}, tp.engagements.accepted)

	acc, err := tp.repo.GetEngagementAcceptance(ctx, "501")
	require.NoError(t, err)
	require.Equal(t, "txn-1", acc.TransactionID)
}

func TestOrchestrator__receiptFailure(t *testing.T) {
	tp := setupPayments(t)
	tp.receipts.Err = errBoom

	result, err := tp.orchestrator.Process(context.Background(), cardCommand(t, nil))
	require.NoError(t, err)
	require.True(t, result.Success())
	require.False(t, result.ReceiptSent())

	noEmail := cardCommand(t, func(p *CardPayment) {
		p.TransactionID = "txn-2"
		p.Email = ""
	})
	result, err = tp.orchestrator.Process(context.Background(), noEmail)
	require.NoError(t, err)
	require.False(t, result.ReceiptSent())
	require.Len(t, tp.receipts.Sent, 1)
}

func TestOrchestrator__saveCard(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	cmd := cardCommand(t, func(p *CardPayment) { p.SavePaymentMethod = true })
	result, err := tp.orchestrator.Process(ctx, cmd)
	require.NoError(t, err)
	require.True(t, result.PaymentMethodSaved())
	require.True(t, tp.cards.Charges[0].Tokenize)

	var methodID string
	row := tp.repo.db.QueryRowContext(ctx, `select method_id from payment_methods where customer_ref = ?`, "cust-42")
	require.NoError(t, row.Scan(&methodID))

	// charge the saved card
	saved, err := NewSavedMethodPayment(SavedMethodPayment{
		Details: func() Details {
			d := testDetails()
			d.TransactionID = "txn-2"
			return d
		}(),
		Method: SavedMethod{ID: methodID, Kind: "card", LastFour: "1111"},
	})
	require.NoError(t, err)

	result, err = tp.orchestrator.Process(ctx, saved)
	require.NoError(t, err)
	require.True(t, result.Success(), result.ErrorMessage())
	require.Len(t, tp.cards.Charges, 2)
	require.Equal(t, "tok-txn-1", tp.cards.Charges[1].Token)
	require.Nil(t, tp.cards.Charges[1].Card)
	require.Equal(t, int64(10300), tp.cards.Charges[1].Amount)
}

func TestOrchestrator__saveCardWithoutToken(t *testing.T) {
	tp := setupPayments(t)
	tp.cards.Response = &CardChargeResponse{TransactionID: "card-1", Approved: true}

	cmd := cardCommand(t, func(p *CardPayment) { p.SavePaymentMethod = true })
	result, err := tp.orchestrator.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.False(t, result.PaymentMethodSaved())
}

func TestOrchestrator__savedMethodOtherCustomer(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	m := &Method{CustomerRef: "cust-other", Kind: "card", LastFour: "1111", CardToken: "tok-1"}
	require.NoError(t, tp.repo.SaveMethod(ctx, m))

	cmd, err := NewSavedMethodPayment(SavedMethodPayment{
		Details: testDetails(),
		Method:  SavedMethod{ID: m.ID, Kind: "card"},
	})
	require.NoError(t, err)

	result, err := tp.orchestrator.Process(ctx, cmd)
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Equal(t, "saved payment method not found", result.ErrorMessage())
	require.Empty(t, tp.cards.Charges)
}

func TestOrchestrator__ach(t *testing.T) {
	tp := setupPayments(t)
	ctx := context.Background()

	d := testDetails()
	d.SavePaymentMethod = true
	cmd, err := NewACHPayment(ACHPayment{Details: d, ACH: testACH()})
	require.NoError(t, err)

	result, err := tp.orchestrator.Process(ctx, cmd)
	require.NoError(t, err)
	require.True(t, result.Success(), result.ErrorMessage())
	require.Equal(t, "entry-txn-1", result.GatewayTransactionID())
	require.True(t, result.PaymentMethodSaved())
	require.Empty(t, tp.cards.Charges)

	require.Len(t, tp.originator.entries, 1)
	entry := tp.originator.entries[0]
	require.Equal(t, ach.WEB, entry.SECCode)
	require.Equal(t, int64(10300), entry.Amount)
	require.Equal(t, "231380104", entry.RoutingNumber)
	require.Equal(t, result.Payment().ID, entry.PaymentID)
	require.Empty(t, entry.MethodID)

	require.Equal(t, MethodACH, tp.ledger.entries[0].Method)

	// bank accounts are saved encrypted and charged from the saved copy
	var methodID, accountEncrypted string
	row := tp.repo.db.QueryRowContext(ctx, `select method_id, account_number_encrypted from payment_methods where customer_ref = ?`, "cust-42")
	require.NoError(t, row.Scan(&methodID, &accountEncrypted))
	require.NotContains(t, accountEncrypted, "123456789")

	saved, err := NewSavedMethodPayment(SavedMethodPayment{
		Details: func() Details {
			d := testDetails()
			d.TransactionID = "txn-2"
			return d
		}(),
		Method: SavedMethod{ID: methodID, Kind: "ach", LastFour: "6789", HolderType: "personal"},
	})
	require.NoError(t, err)

	result, err = tp.orchestrator.Process(ctx, saved)
	require.NoError(t, err)
	require.True(t, result.Success(), result.ErrorMessage())

	require.Len(t, tp.originator.entries, 2)
	entry = tp.originator.entries[1]
	require.Equal(t, methodID, entry.MethodID)
	require.Equal(t, "123456789", entry.AccountNumber)
	require.Equal(t, int64(10000), entry.Amount) // no fee on saved bank accounts
}

func TestOrchestrator__achRejected(t *testing.T) {
	tp := setupPayments(t)
	tp.originator.err = errors.New("SEC code TEL is not allowed")

	cmd, err := NewACHPayment(ACHPayment{Details: testDetails(), ACH: testACH()})
	require.NoError(t, err)

	result, err := tp.orchestrator.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.False(t, result.Success())
	require.True(t, strings.HasPrefix(result.ErrorMessage(), "ACH payment:"))
}

func TestOrchestrator__achAccumulated(t *testing.T) {
	db := database.CreateTestSqliteDB(t)
	keeper := secrets.TestStringKeeper(t)
	logger := log.NewNopLogger()

	accumulator := settlement.NewAccumulator(logger, testACHConfig(), settlement.NewRepository(db.DB), keeper)
	orch := NewOrchestrator(logger, NewRepository(db.DB, keeper), keeper, nil, accumulator, nil, nil, nil, nil)

	cmd, err := NewAdminACHPayment(AdminACHPayment{Details: testDetails(), ACH: testACH()})
	require.NoError(t, err)

	result, err := orch.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, result.Success(), result.ErrorMessage())
	require.Equal(t, "ledger disabled", result.Ledger().Reason())

	entry, err := settlement.NewRepository(db.DB).GetEntry(context.Background(), result.GatewayTransactionID())
	require.NoError(t, err)
	require.Equal(t, settlement.EntryPending, entry.Status)
	require.Equal(t, int64(10300), entry.Amount)
	require.Equal(t, result.Payment().ID, entry.PaymentID)

	// no card gateway configured
	card := cardCommand(t, func(p *CardPayment) { p.TransactionID = "txn-card" })
	result, err = orch.Process(context.Background(), card)
	require.NoError(t, err)
	require.False(t, result.Success())
}

func TestOrchestrator__check(t *testing.T) {
	tp := setupPayments(t)

	cmd, err := NewAdminCheckPayment(AdminCheckPayment{Details: testDetails(), Check: CheckDetails{CheckNumber: "10452", BankName: "First Bank"}})
	require.NoError(t, err)

	result, err := tp.orchestrator.Process(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Empty(t, result.GatewayTransactionID())
	require.Equal(t, "10452", result.GatewayResponse()["checkNumber"])
	require.Equal(t, MethodCheck, tp.ledger.entries[0].Method)
	require.Empty(t, tp.cards.Charges)
	require.Empty(t, tp.originator.entries)
}

type failingPayments struct {
	Repository
}

func (failingPayments) SavePayment(_ context.Context, _ *Payment) error {
	return errBoom
}

func TestOrchestrator__chargedNotSaved(t *testing.T) {
	tp := setupPayments(t)
	tp.orchestrator.repo = failingPayments{Repository: tp.repo}

	result, err := tp.orchestrator.Process(context.Background(), cardCommand(t, nil))
	require.NoError(t, err)
	require.False(t, result.Success())
	require.Equal(t, "card-txn-1", result.GatewayTransactionID())
	require.Empty(t, tp.ledger.entries)

	alerts := tp.alerts.Criticals()
	require.Len(t, alerts, 1)
	require.Equal(t, notify.Payment, alerts[0].Topic)
	require.Contains(t, alerts[0].Body, "card-txn-1")
}

func TestOrchestrator__nilCommand(t *testing.T) {
	tp := setupPayments(t)
	_, err := tp.orchestrator.Process(context.Background(), nil)
	require.Error(t, err)
}
