// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package practicecs

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"
)

// SQLWriter inserts ledger entries into the PracticeCS database.
//
// Queries use ordinal @pN placeholders with positional arguments, which both
// SQL Server and sqlite bind in order.
type SQLWriter struct {
	cfg config.PracticeCS
	db  *sql.DB

	now func() time.Time
}

func NewSQLWriter(cfg config.PracticeCS, db *sql.DB) *SQLWriter {
	return &SQLWriter{
		cfg: cfg,
		db:  db,
		now: time.Now,
	}
}

// Write is idempotent on entry.Reference, returning the existing ledger key when the
// entry was already written.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) (string, error) {
	if err := entry.validate(); err != nil {
		return "", err
	}
	lt, ok := w.cfg.LedgerTypes[entry.Method]
	if !ok {
		return "", fmt.Errorf("%w: no ledger type for %q", ErrInvalidEntry, entry.Method)
	}
	if entry.Date.IsZero() {
		entry.Date = w.now()
	}

	var key int64
	err := database.Tx(ctx, w.db, func(tx *sql.Tx) error {
		var err error
		if key, err = ledgerKey(ctx, tx, entry.Reference); err == nil {
			return nil
		} else if err != ErrNotFound {
			return err
		}

		query := `insert into Ledger_Entry (client_KEY, ledger_entry_type_KEY, ledger_entry_subtype_KEY, staff_KEY, bank_account_KEY, amount, entry_date, reference, comments, posted, create_date)
values (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11);`
		_, err = tx.ExecContext(ctx, query,
			entry.ClientKey,
			lt.Type,
			lt.Subtype,
			w.cfg.StaffKey,
			w.cfg.BankAccountKey,
			money.ToDollars(entry.Amount),
			entry.Date.Format("2006-01-02"),
			entry.Reference,
			entry.Comments,
			w.cfg.AutoPost,
			w.now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %v", err)
		}
		if key, err = ledgerKey(ctx, tx, entry.Reference); err != nil {
			return err
		}
		return w.writeMemos(ctx, tx, key, entry)
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(key, 10), nil
}

func (w *SQLWriter) writeMemos(ctx context.Context, tx *sql.Tx, key int64, entry Entry) error {
	if len(entry.Distributions) == 0 {
		return nil
	}
	query := `insert into Ledger_Entry_Memo (ledger_entry_KEY, client_KEY, memo_type_KEY, amount) values (@p1, @p2, @p3, @p4);`
	insert := func(client, memoType int, amount int64) error {
		_, err := tx.ExecContext(ctx, query, key, client, memoType, money.ToDollars(amount))
		return err
	}
	if err := insert(entry.ClientKey, w.cfg.MemoTypes.Debit, entry.Amount); err != nil {
		return fmt.Errorf("debit memo: %v", err)
	}
	for _, d := range entry.Distributions {
		if err := insert(d.ClientKey, w.cfg.MemoTypes.Credit, d.Amount); err != nil {
			return fmt.Errorf("credit memo for client %d: %v", d.ClientKey, err)
		}
	}
	return nil
}

func ledgerKey(ctx context.Context, tx *sql.Tx, reference string) (int64, error) {
	var key int64
	err := tx.QueryRowContext(ctx, `select ledger_entry_KEY from Ledger_Entry where reference = @p1;`, reference).Scan(&key)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return key, err
}
