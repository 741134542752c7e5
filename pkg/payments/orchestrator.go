// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/practicecs"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

// LedgerRecorder writes payments into the accounting ledger.
type LedgerRecorder interface {
	Record(ctx context.Context, entry practicecs.Entry) (practicecs.Receipt, error)
}

// EngagementAcceptor accepts an engagement and returns its new type key, if any.
type EngagementAcceptor interface {
	Accept(ctx context.Context, engagementKey string) (string, error)
}

// Orchestrator takes payments. Once a charge is captured every later step is best
// effort: failures are reported on the Result and never undo the charge.
type Orchestrator struct {
	logger log.Logger
	repo   Repository
	keeper *secrets.StringKeeper

	cards      CardGateway
	originator ACHOriginator

	ledger      LedgerRecorder
	engagements EngagementAcceptor
	receipts    notify.ReceiptSender
	alerts      notify.Sender

	locks util.KeyedMutex
	now   func() time.Time
}

// NewOrchestrator returns an Orchestrator. A nil ledger skips ledger writes and a nil
// engagements acceptor only records acceptances locally.
func NewOrchestrator(
	logger log.Logger,
	repo Repository,
	keeper *secrets.StringKeeper,
	cards CardGateway,
	originator ACHOriginator,
	ledger LedgerRecorder,
	engagements EngagementAcceptor,
	receipts notify.ReceiptSender,
	alerts notify.Sender,
) *Orchestrator {
	return &Orchestrator{
		logger:      logger,
		repo:        repo,
		keeper:      keeper,
		cards:       cards,
		originator:  originator,
		ledger:      ledger,
		engagements: engagements,
		receipts:    receipts,
		alerts:      alerts,
		now:         time.Now,
	}
}

// Process charges cmd and records the payment. The error is only for nil commands and
// ErrChargeInProgress, every other outcome is described by the Result.
func (o *Orchestrator) Process(ctx context.Context, cmd *Command) (*Result, error) {
	if cmd == nil {
		return nil, errors.New("payments: nil command")
	}
	txID := cmd.TransactionID()

	unlock, ok := o.locks.TryLock(txID)
	if !ok {
		return nil, ErrChargeInProgress
	}
	defer unlock()

	existing, claimed, err := o.repo.ClaimAttempt(ctx, txID)
	if err != nil {
		o.logger.Log("payments", "problem claiming payment attempt", "transactionID", txID, "error", err)
		return Failed("unable to start payment, please try again", txID), nil
	}
	if !claimed {
		return o.previous(ctx, existing)
	}

	result := o.process(ctx, cmd)

	status := AttemptSucceeded
	if !result.Success() {
		status = AttemptFailed
	}
	if err := o.repo.FinishAttempt(ctx, txID, status, result.ErrorMessage()); err != nil {
		o.logger.Log("payments", "problem finishing payment attempt", "transactionID", txID, "error", err)
	}
	paymentsProcessed.With("method", cmd.Method(), "source", string(cmd.Source()), "status", string(status)).Add(1)
	return result, nil
}

// previous returns the Result of an earlier attempt with the same transaction id.
func (o *Orchestrator) previous(ctx context.Context, attempt *Attempt) (*Result, error) {
	switch attempt.Status {
	case AttemptSucceeded:
		p, err := o.repo.GetPayment(ctx, attempt.TransactionID)
		if err != nil {
			o.logger.Log("payments", "problem reading previous payment", "transactionID", attempt.TransactionID, "error", err)
			return nil, ErrChargeInProgress
		}
		return (&outcome{
			transactionID:        p.TransactionID,
			gatewayTransactionID: p.GatewayTransactionID,
			payment:              p,
			ledger:               LedgerSkipped("already processed"),
		}).result(), nil

	case AttemptFailed:
		return Failed(attempt.Error, attempt.TransactionID), nil
	}
	return nil, ErrChargeInProgress
}

type charge struct {
	gatewayTransactionID string
	response             map[string]interface{}
	cardToken            string
}

func (o *Orchestrator) process(ctx context.Context, cmd *Command) *Result {
	txID := cmd.TransactionID()
	paymentID := base.ID()

	ch, err := o.charge(ctx, cmd, paymentID)
	if err != nil {
		o.logger.Log("payments", "charge failed", "transactionID", txID, "method", cmd.Method(), "error", err)
		return Failed(err.Error(), txID)
	}

	out := &outcome{
		transactionID:        txID,
		gatewayTransactionID: ch.gatewayTransactionID,
		gatewayResponse:      ch.response,
	}
	payment := &Payment{
		ID:                   paymentID,
		TransactionID:        txID,
		GatewayTransactionID: ch.gatewayTransactionID,
		CustomerRef:          cmd.CustomerRef(),
		ClientKey:            cmd.ClientKey(),
		Amount:               cmd.BaseAmount(),
		Fee:                  cmd.TotalCharge() - cmd.BaseAmount(),
		Total:                cmd.TotalCharge(),
		Method:               cmd.Method(),
		ChargeMethod:         cmd.ChargeMethod(),
		LastFour:             cmd.LastFour(),
		Description:          cmd.Description(),
		Invoices:             cmd.SelectedInvoices(),
		Source:               cmd.Source(),
		CreatedAt:            o.now().UTC(),
	}
	if err := o.repo.SavePayment(ctx, payment); err != nil {
		o.logger.Log("payments", "payment charged but not saved", "transactionID", txID, "gatewayTransactionID", ch.gatewayTransactionID, "error", err)
		o.critical(&notify.Message{
			Topic:   notify.Payment,
			Subject: fmt.Sprintf("Payment %s was charged but could not be saved", txID),
			Body:    fmt.Sprintf("gateway transaction %s for %s: %v", ch.gatewayTransactionID, money.FormatCents(cmd.TotalCharge()), err),
		})
		return failedAfterCharge("payment was charged but could not be recorded", txID, ch.gatewayTransactionID)
	}
	out.payment = payment

	out.ledger = o.writeLedger(ctx, cmd, out)
	ledgerOutcomes.With("status", string(out.ledger.Status())).Add(1)

	out.engagements = o.acceptEngagements(ctx, cmd)

	if cmd.SendReceipt() {
		out.receiptSent = o.sendReceipt(ctx, cmd)
	}
	if cmd.SavePaymentMethod() {
		out.paymentMethodSaved = o.saveMethod(ctx, cmd, ch)
	}

	o.logger.Log("payments", "payment processed", "transactionID", txID, "paymentID", paymentID, "method", cmd.Method(), "ledger", out.ledger.Status())
	return out.result()
}

func (o *Orchestrator) charge(ctx context.Context, cmd *Command, paymentID string) (*charge, error) {
	switch inst := cmd.Instrument().(type) {
	case CardDetails:
		return o.chargeCard(ctx, cmd, CardCharge{Card: &inst, Tokenize: cmd.SavePaymentMethod()})

	case ACHDetails:
		return o.originate(ctx, cmd, paymentID, settlement.NewEntry{
			IndividualName: inst.AccountName,
			RoutingNumber:  inst.RoutingNumber,
			AccountNumber:  inst.AccountNumber,
			AccountType:    inst.AccountType,
		})

	case SavedMethod:
		m, err := o.repo.GetMethod(ctx, inst.ID)
		if err != nil || m.CustomerRef != cmd.CustomerRef() {
			return nil, errors.New("saved payment method not found")
		}
		if m.Kind == "card" {
			return o.chargeCard(ctx, cmd, CardCharge{Token: m.CardToken})
		}
		routing, err := o.keeper.DecryptString(ctx, m.RoutingNumberEncrypted)
		if err != nil {
			return nil, fmt.Errorf("saved payment method: %v", err)
		}
		account, err := o.keeper.DecryptString(ctx, m.AccountNumberEncrypted)
		if err != nil {
			return nil, fmt.Errorf("saved payment method: %v", err)
		}
		return o.originate(ctx, cmd, paymentID, settlement.NewEntry{
			IndividualName: m.Name,
			RoutingNumber:  routing,
			AccountNumber:  account,
			AccountType:    m.AccountType,
			MethodID:       m.ID,
		})

	case CheckDetails:
		return &charge{
			response: map[string]interface{}{
				"checkNumber": inst.CheckNumber,
				"bankName":    inst.BankName,
			},
		}, nil
	}
	return nil, errors.New("unsupported payment method")
}

func (o *Orchestrator) chargeCard(ctx context.Context, cmd *Command, req CardCharge) (*charge, error) {
	if o.cards == nil {
		return nil, errors.New("card payments are not available")
	}
	req.TransactionID = cmd.TransactionID()
	req.Amount = cmd.TotalCharge()
	req.Description = cmd.Description()

	resp, err := o.cards.Charge(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("card charge: %v", err)
	}
	if !resp.Approved {
		msg := resp.Message
		if msg == "" {
			msg = "declined"
		}
		return nil, fmt.Errorf("card declined: %s", msg)
	}
	return &charge{
		gatewayTransactionID: resp.TransactionID,
		response:             resp.Raw,
		cardToken:            resp.Token,
	}, nil
}

func (o *Orchestrator) originate(ctx context.Context, cmd *Command, paymentID string, entry settlement.NewEntry) (*charge, error) {
	if o.originator == nil {
		return nil, errors.New("ACH payments are not available")
	}
	entry.PaymentID = paymentID
	entry.TransactionID = cmd.TransactionID()
	entry.Amount = cmd.TotalCharge()
	entry.SECCode = cmd.SECCode()

	entryID, err := o.originator.Originate(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("ACH payment: %v", err)
	}
	return &charge{
		gatewayTransactionID: entryID,
		response: map[string]interface{}{
			"entryId": entryID,
			"secCode": entry.SECCode,
		},
	}, nil
}

func (o *Orchestrator) writeLedger(ctx context.Context, cmd *Command, out *outcome) LedgerOutcome {
	switch {
	case o.ledger == nil:
		return LedgerSkipped("ledger disabled")
	case cmd.LeaveUnapplied():
		return LedgerSkipped("payment left unapplied")
	case cmd.ClientKey() <= 0:
		return LedgerSkipped("no client")
	}

	receipt, err := o.ledger.Record(ctx, practicecs.Entry{
		Reference:     cmd.TransactionID(),
		ClientKey:     cmd.ClientKey(),
		Amount:        cmd.BaseAmount(),
		Method:        cmd.Method(),
		Comments:      cmd.Description(),
		Date:          o.now(),
		Distributions: distributions(cmd),
	})
	if err != nil {
		o.logger.Log("payments", "ledger write failed", "transactionID", cmd.TransactionID(), "error", err)
		out.warn("payment was taken but the ledger entry was not written")
		o.critical(&notify.Message{
			Topic:   notify.Ledger,
			Subject: fmt.Sprintf("Ledger entry for payment %s needs to be entered manually", cmd.TransactionID()),
			Body:    fmt.Sprintf("client %d paid %s: %v", cmd.ClientKey(), money.FormatCents(cmd.BaseAmount()), err),
		})
		return LedgerFailed(err)
	}
	if receipt.Status == practicecs.StatusDeferred {
		return LedgerDeferred(receipt.Reference)
	}
	return LedgerWritten(receipt.Reference)
}

// distributions spreads a payment over the clients of its selected invoices when they
// belong to more than one client and add up to the payment.
func distributions(cmd *Command) []practicecs.Distribution {
	selected := make(map[string]bool)
	for _, num := range cmd.SelectedInvoices() {
		selected[num] = true
	}
	var order []int
	totals := make(map[int]int64)
	var sum int64
	for _, inv := range cmd.Invoices() {
		if !selected[inv.Number] || inv.ClientKey <= 0 {
			continue
		}
		if _, seen := totals[inv.ClientKey]; !seen {
			order = append(order, inv.ClientKey)
		}
		totals[inv.ClientKey] += inv.Amount
		sum += inv.Amount
	}
	if len(order) < 2 || sum != cmd.BaseAmount() {
		return nil
	}
	out := make([]practicecs.Distribution, 0, len(order))
	for _, key := range order {
		out = append(out, practicecs.Distribution{ClientKey: key, Amount: totals[key]})
	}
	return out
}

func (o *Orchestrator) acceptEngagements(ctx context.Context, cmd *Command) []EngagementResult {
	keys := cmd.Engagements()
	if len(keys) == 0 {
		return nil
	}
	results := make([]EngagementResult, 0, len(keys))
	for _, key := range keys {
		res := o.acceptEngagement(ctx, cmd.TransactionID(), key)
		if !res.Success {
			engagementFailures.Add(1)
			o.logger.Log("payments", "problem accepting engagement", "transactionID", cmd.TransactionID(), "engagement", key, "error", res.Error)
		}
		results = append(results, res)
	}
	return results
}

func (o *Orchestrator) acceptEngagement(ctx context.Context, txID, key string) EngagementResult {
	if prev, err := o.repo.GetEngagementAcceptance(ctx, key); err == nil {
		return EngagementResult{Key: key, Success: true, NewTypeKey: prev.NewTypeKey}
	} else if !errors.Is(err, ErrNotFound) {
		return EngagementResult{Key: key, Error: err.Error()}
	}

	var newType string
	if o.engagements != nil {
		var err error
		if newType, err = o.engagements.Accept(ctx, key); err != nil {
			return EngagementResult{Key: key, Error: err.Error()}
		}
	}
	err := o.repo.AcceptEngagement(ctx, EngagementAcceptance{
		Key:           key,
		TransactionID: txID,
		NewTypeKey:    newType,
		AcceptedAt:    o.now().UTC(),
	})
	if err != nil {
		return EngagementResult{Key: key, Error: err.Error(), NewTypeKey: newType}
	}
	return EngagementResult{Key: key, Success: true, NewTypeKey: newType}
}

func (o *Orchestrator) sendReceipt(ctx context.Context, cmd *Command) bool {
	if o.receipts == nil || cmd.Email() == "" {
		return false
	}
	err := o.receipts.SendReceipt(ctx, notify.Receipt{
		To:            cmd.Email(),
		Total:         money.FormatCents(cmd.TotalCharge()),
		Method:        cmd.Method(),
		LastFour:      cmd.LastFour(),
		Description:   cmd.Description(),
		TransactionID: cmd.TransactionID(),
	})
	if err != nil {
		o.logger.Log("payments", "problem sending receipt", "transactionID", cmd.TransactionID(), "error", err)
		return false
	}
	return true
}

func (o *Orchestrator) saveMethod(ctx context.Context, cmd *Command, ch *charge) bool {
	m := &Method{
		CustomerRef: cmd.CustomerRef(),
		LastFour:    cmd.LastFour(),
	}
	switch inst := cmd.Instrument().(type) {
	case CardDetails:
		if ch.cardToken == "" {
			o.logger.Log("payments", "card gateway returned no token", "transactionID", cmd.TransactionID())
			return false
		}
		m.Kind = "card"
		m.Name = inst.Name
		m.CardToken = ch.cardToken
		m.Expiration = inst.Expiration

	case ACHDetails:
		var err error
		if m.RoutingNumberEncrypted, err = o.keeper.EncryptString(ctx, inst.RoutingNumber); err != nil {
			o.logger.Log("payments", "problem encrypting routing number", "transactionID", cmd.TransactionID(), "error", err)
			return false
		}
		if m.AccountNumberEncrypted, err = o.keeper.EncryptString(ctx, inst.AccountNumber); err != nil {
			o.logger.Log("payments", "problem encrypting account number", "transactionID", cmd.TransactionID(), "error", err)
			return false
		}
		m.Kind = "ach"
		m.Name = inst.AccountName
		m.AccountType = inst.AccountType
		m.HolderType = inst.HolderType

	default:
		return false
	}
	if err := o.repo.SaveMethod(ctx, m); err != nil {
		o.logger.Log("payments", "problem saving payment method", "transactionID", cmd.TransactionID(), "error", err)
		return false
	}
	return true
}

func (o *Orchestrator) critical(msg *notify.Message) {
	if o.alerts == nil {
		return
	}
	if err := o.alerts.Critical(msg); err != nil {
		o.logger.Log("payments", "problem sending alert", "error", err)
	}
}
