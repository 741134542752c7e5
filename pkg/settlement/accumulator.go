// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/ach"
	"github.com/moov-io/base"
)

// Accumulator appends debit entries to the open batch for their SEC code and effective date.
type Accumulator struct {
	logger log.Logger
	cfg    config.ACH
	repo   *SQLRepository
	keeper *secrets.StringKeeper

	locks util.KeyedMutex
	now   func() time.Time
}

func NewAccumulator(logger log.Logger, cfg config.ACH, repo *SQLRepository, keeper *secrets.StringKeeper) *Accumulator {
	return &Accumulator{
		logger: logger,
		cfg:    cfg,
		repo:   repo,
		keeper: keeper,
		now:    time.Now,
	}
}

func (a *Accumulator) validate(req NewEntry) (string, error) {
	sec := strings.ToUpper(util.Or(req.SECCode, a.cfg.DefaultSECCode))
	if !a.cfg.Allowed(sec) {
		return "", fmt.Errorf("%w: SEC code %s is not allowed", ErrInvalidEntry, sec)
	}
	if a.cfg.BalancedFiles && sec == ach.TEL {
		return "", fmt.Errorf("%w: TEL entries can not be balanced", ErrInvalidEntry)
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if len(req.RoutingNumber) != 9 {
		return "", fmt.Errorf("%w: routing number must be 9 digits", ErrInvalidEntry)
	}
	if req.AccountNumber == "" {
		return "", fmt.Errorf("%w: missing account number", ErrInvalidEntry)
	}
	if req.IndividualName == "" {
		return "", fmt.Errorf("%w: missing individual name", ErrInvalidEntry)
	}
	if _, err := debitCode(req.AccountType); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return sec, nil
}

func debitCode(accountType string) (int, error) {
	switch strings.ToLower(accountType) {
	case "", "checking":
		return ach.CheckingDebit, nil
	case "savings":
		return ach.SavingsDebit, nil
	}
	return 0, fmt.Errorf("unknown account type %q", accountType)
}

// AddEntry stores req as a pending entry in the open batch for its key, creating the batch
// when none is open.
func (a *Accumulator) AddEntry(ctx context.Context, req NewEntry) (*Entry, error) {
	sec, err := a.validate(req)
	if err != nil {
		return nil, err
	}
	effective, err := EffectiveDate(a.cfg, a.now(), req.DelayDays)
	if err != nil {
		return nil, err
	}

	routing, err := a.keeper.EncryptString(ctx, req.RoutingNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypt routing number: %v", err)
	}
	account, err := a.keeper.EncryptString(ctx, req.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypt account number: %v", err)
	}
	code, _ := debitCode(req.AccountType)

	now := a.now().UTC()
	entry := &Entry{
		ID:                     base.ID(),
		PaymentID:              req.PaymentID,
		TransactionID:          req.TransactionID,
		IndividualName:         req.IndividualName,
		RoutingLastFour:        secrets.LastFour(req.RoutingNumber),
		AccountLastFour:        secrets.LastFour(req.AccountNumber),
		RoutingNumberEncrypted: routing,
		AccountNumberEncrypted: account,
		AccountType:            util.Or(strings.ToLower(req.AccountType), "checking"),
		TransactionCode:        code,
		Amount:                 req.Amount,
		Status:                 EntryPending,
		RetryOf:                req.RetryOf,
		RetryCount:             req.RetryCount,
		MethodID:               req.MethodID,
		EffectiveDate:          effective,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	unlock := a.locks.Lock(sec + "/" + effective.Format(dateFormat))
	defer unlock()

	for attempt := 0; attempt < 3; attempt++ {
		err = a.repo.tx(ctx, func(tx *sql.Tx) error {
			batch, err := a.repo.findOpenBatch(ctx, tx, sec, effective, a.cfg.MaxEntriesPerBatch)
			if err != nil {
				return err
			}
			if batch == nil {
				batch = &Batch{
					ID:               base.ID(),
					SECCode:          sec,
					EntryDescription: a.cfg.EntryDescription,
					EffectiveDate:    effective,
					Status:           BatchPending,
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				if err := a.repo.insertBatch(ctx, tx, batch); err != nil {
					return fmt.Errorf("create batch: %v", err)
				}
				batchesOpened.With("sec_code", sec).Add(1)
			}
			entry.BatchID = batch.ID
			if err := a.repo.insertEntry(ctx, tx, entry); err != nil {
				return fmt.Errorf("insert entry: %v", err)
			}
			return a.repo.recordBatchEntry(ctx, tx, batch.ID, entry.Amount)
		})
		if !errors.Is(err, ErrBatchClosed) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("add entry: %w", err)
	}

	entriesAccumulated.With("sec_code", sec).Add(1)
	a.logger.Log(
		"settlement", "entry accumulated",
		"entryID", entry.ID, "batchID", entry.BatchID,
		"secCode", sec, "effectiveDate", effective.Format(dateFormat),
		"transactionID", entry.TransactionID)

	return entry, nil
}

// Originate accumulates a debit and returns the entry ID as its gateway reference.
func (a *Accumulator) Originate(ctx context.Context, req NewEntry) (string, error) {
	entry, err := a.AddEntry(ctx, req)
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// CloseBatches moves every pending batch to ready so no more entries join it.
func (a *Accumulator) CloseBatches(ctx context.Context) (int64, error) {
	n, err := a.repo.closePendingBatches(ctx, a.repo.db)
	if err != nil {
		return 0, fmt.Errorf("close batches: %v", err)
	}
	if n > 0 {
		a.logger.Log("settlement", fmt.Sprintf("closed %d batches", n))
	}
	return n, nil
}

func (a *Accumulator) CancelBatch(ctx context.Context, batchID string) error {
	return a.repo.tx(ctx, func(tx *sql.Tx) error {
		batch, err := a.repo.getBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.FileID != "" {
			return transitionError("batch", batch.Status, BatchCancelled)
		}
		return a.repo.setBatchStatus(ctx, tx, batch.ID, batch.Status, BatchCancelled)
	})
}

// ApplyCorrection updates the stored account details of an entry from a Notification of Change.
func (a *Accumulator) ApplyCorrection(ctx context.Context, entryID string, c Correction) (*Entry, error) {
	if c.Empty() {
		return nil, errors.New("empty correction")
	}
	entry, err := a.repo.getEntry(ctx, a.repo.db, entryID)
	if err != nil {
		return nil, err
	}
	if c.RoutingNumber != "" {
		if entry.RoutingNumberEncrypted, err = a.keeper.EncryptString(ctx, c.RoutingNumber); err != nil {
			return nil, err
		}
		entry.RoutingLastFour = secrets.LastFour(c.RoutingNumber)
	}
	if c.AccountNumber != "" {
		if entry.AccountNumberEncrypted, err = a.keeper.EncryptString(ctx, c.AccountNumber); err != nil {
			return nil, err
		}
		entry.AccountLastFour = secrets.LastFour(c.AccountNumber)
	}
	if c.AccountType != "" {
		code, err := debitCode(c.AccountType)
		if err != nil {
			return nil, err
		}
		entry.AccountType = strings.ToLower(c.AccountType)
		entry.TransactionCode = code
	}
	if c.TransactionCode != 0 {
		entry.TransactionCode = c.TransactionCode
		entry.AccountType = accountTypeFor(c.TransactionCode, entry.AccountType)
	}
	if err := a.repo.updateEntryAccount(ctx, a.repo.db, entry); err != nil {
		return nil, fmt.Errorf("apply correction: %v", err)
	}
	return entry, nil
}

func accountTypeFor(code int, fallback string) string {
	switch code {
	case ach.CheckingCredit, ach.CheckingDebit, ach.CheckingPrenoteCredit, ach.CheckingPrenoteDebit:
		return "checking"
	case ach.SavingsCredit, ach.SavingsDebit, ach.SavingsPrenoteCredit, ach.SavingsPrenoteDebit:
		return "savings"
	}
	return fallback
}

// Retry accumulates a new entry for the same account and amount as a returned entry.
// An entry is retried once, later calls return the existing retry.
func (a *Accumulator) Retry(ctx context.Context, original *Entry, delayDays int) (*Entry, error) {
	if original == nil {
		return nil, errors.New("nil entry")
	}
	existing, err := a.repo.getRetry(ctx, a.repo.db, original.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("retry %s: %v", original.ID, err)
	}
	batch, err := a.repo.getBatch(ctx, a.repo.db, original.BatchID)
	if err != nil {
		return nil, fmt.Errorf("retry %s: %v", original.ID, err)
	}
	routing, err := a.keeper.DecryptString(ctx, original.RoutingNumberEncrypted)
	if err != nil {
		return nil, fmt.Errorf("retry %s: decrypt routing number: %v", original.ID, err)
	}
	account, err := a.keeper.DecryptString(ctx, original.AccountNumberEncrypted)
	if err != nil {
		return nil, fmt.Errorf("retry %s: decrypt account number: %v", original.ID, err)
	}
	return a.AddEntry(ctx, NewEntry{
		PaymentID:      original.PaymentID,
		TransactionID:  original.TransactionID,
		IndividualName: original.IndividualName,
		RoutingNumber:  routing,
		AccountNumber:  account,
		AccountType:    original.AccountType,
		Amount:         original.Amount,
		SECCode:        batch.SECCode,
		MethodID:       original.MethodID,
		RetryOf:        original.ID,
		RetryCount:     original.RetryCount + 1,
		DelayDays:      delayDays,
	})
}
