// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package practicecs

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

// setupLedgerDB returns a sqlite database with our migrations and the parts of the
// PracticeCS schema we write to.
func setupLedgerDB(t *testing.T) *sql.DB {
	t.Helper()

	db := database.CreateTestSqliteDB(t).DB
	statements := []string{
		`create table Ledger_Entry(ledger_entry_KEY integer primary key autoincrement, client_KEY integer, ledger_entry_type_KEY integer, ledger_entry_subtype_KEY integer, staff_KEY integer, bank_account_KEY integer, amount real, entry_date, reference unique, comments, posted, create_date);`,
		`create table Ledger_Entry_Memo(ledger_entry_KEY integer, client_KEY integer, memo_type_KEY integer, amount real);`,
		`create table Engagement(engagement_KEY integer primary key, engagement_type_KEY integer, accepted_date);`,
		`insert into Engagement (engagement_KEY, engagement_type_KEY) values (501, 1), (502, 1);`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func testPracticeCS() config.PracticeCS {
	return config.PracticeCS{
		Enabled:        true,
		Mode:           "sync",
		StaffKey:       42,
		BankAccountKey: 7,
		LedgerTypes: map[string]config.LedgerType{
			"credit_card": {Type: 1, Subtype: 10},
			"ach":         {Type: 1, Subtype: 11},
			"check":       {Type: 1, Subtype: 12},
			"cash":        {Type: 1, Subtype: 13},
		},
		MemoTypes:        config.MemoTypes{Debit: 3, Credit: 4},
		MaxQueueAttempts: 2,
	}
}

func testEntry(reference string) Entry {
	return Entry{
		Reference: reference,
		ClientKey: 1001,
		Amount:    12550,
		Method:    "ach",
		Comments:  "Payment for invoice(s) 1001",
		Date:      time.Date(2020, time.October, 13, 0, 0, 0, 0, time.UTC),
	}
}

type mockWriter struct {
	mu     sync.Mutex
	err    error
	writes []Entry
}

func (w *mockWriter) Write(_ context.Context, entry Entry) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.writes = append(w.writes, entry)
	return "1", nil
}

func TestEntry__validate(t *testing.T) {
	require.NoError(t, testEntry("txn-1").validate())

	cases := []func(e *Entry){
		func(e *Entry) { e.Reference = "" },
		func(e *Entry) { e.ClientKey = 0 },
		func(e *Entry) { e.Amount = 0 },
		func(e *Entry) { e.Distributions = []Distribution{{ClientKey: 1002, Amount: 100}} },
		func(e *Entry) { e.Distributions = []Distribution{{ClientKey: 0, Amount: 12550}} },
	}
	for i := range cases {
		e := testEntry("txn-1")
		cases[i](&e)
		err := e.validate()
		if !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("case %d: expected ErrInvalidEntry, got %v", i, err)
		}
	}
}

func TestSQLWriter(t *testing.T) {
	db := setupLedgerDB(t)
	cfg := testPracticeCS()
	cfg.AutoPost = true
	writer := NewSQLWriter(cfg, db)

	key, err := writer.Write(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)
	require.NotEmpty(t, key)

	var client, typ, subtype, staff, bank int
	var amount float64
	var posted bool
	row := db.QueryRow(`select client_KEY, ledger_entry_type_KEY, ledger_entry_subtype_KEY, staff_KEY, bank_account_KEY, amount, posted from Ledger_Entry where reference = 'txn-1'`)
	require.NoError(t, row.Scan(&client, &typ, &subtype, &staff, &bank, &amount, &posted))
	require.Equal(t, 1001, client)
	require.Equal(t, 1, typ)
	require.Equal(t, 11, subtype)
	require.Equal(t, 42, staff)
	require.Equal(t, 7, bank)
	require.Equal(t, 125.50, amount)
	require.True(t, posted)

	// writing the same reference again returns the same key
	again, err := writer.Write(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)
	require.Equal(t, key, again)

	var count int
	require.NoError(t, db.QueryRow(`select count(*) from Ledger_Entry`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestSQLWriter__distributions(t *testing.T) {
	db := setupLedgerDB(t)
	writer := NewSQLWriter(testPracticeCS(), db)

	entry := testEntry("txn-2")
	entry.Distributions = []Distribution{
		{ClientKey: 1002, Amount: 10000},
		{ClientKey: 1003, Amount: 2550},
	}
	_, err := writer.Write(context.Background(), entry)
	require.NoError(t, err)

	rows, err := db.Query(`select client_KEY, memo_type_KEY, amount from Ledger_Entry_Memo order by rowid`)
	require.NoError(t, err)
	defer rows.Close()

	type memo struct {
		client, memoType int
		amount           float64
	}
	var memos []memo
	for rows.Next() {
		var m memo
		require.NoError(t, rows.Scan(&m.client, &m.memoType, &m.amount))
		memos = append(memos, m)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []memo{
		{client: 1001, memoType: 3, amount: 125.50},
		{client: 1002, memoType: 4, amount: 100.00},
		{client: 1003, memoType: 4, amount: 25.50},
	}, memos)
}

func TestSQLWriter__unknownMethod(t *testing.T) {
	writer := NewSQLWriter(testPracticeCS(), setupLedgerDB(t))

	entry := testEntry("txn-3")
	entry.Method = "wire"
	_, err := writer.Write(context.Background(), entry)
	require.True(t, errors.Is(err, ErrInvalidEntry))
}

func TestLedger__sync(t *testing.T) {
	writer := &mockWriter{}
	ledger := NewLedger(log.NewNopLogger(), testPracticeCS(), writer, nil)

	receipt, err := ledger.Record(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)
	require.Equal(t, Receipt{Status: StatusWritten, Reference: "1"}, receipt)
	require.Len(t, writer.writes, 1)

	writer.err = errors.New("connection refused")
	_, err = ledger.Record(context.Background(), testEntry("txn-2"))
	require.Error(t, err)
}

func TestLedger__async(t *testing.T) {
	db := setupLedgerDB(t)
	cfg := testPracticeCS()
	cfg.Mode = "async"

	writer := &mockWriter{}
	queue := NewQueue(log.NewNopLogger(), db, writer, cfg.MaxQueueAttempts)
	ledger := NewLedger(log.NewNopLogger(), cfg, writer, queue)

	receipt, err := ledger.Record(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)
	require.Equal(t, StatusDeferred, receipt.Status)
	require.NotEmpty(t, receipt.Reference)
	require.Empty(t, writer.writes)

	// the same reference is only queued once
	again, err := ledger.Record(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)
	require.Equal(t, receipt.Reference, again.Reference)

	n, err := queue.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, writer.writes, 1)
	require.Equal(t, "txn-1", writer.writes[0].Reference)
	require.Equal(t, int64(12550), writer.writes[0].Amount)

	qe, err := queue.Get(context.Background(), receipt.Reference)
	require.NoError(t, err)
	require.Equal(t, QueueWritten, qe.Status)
	require.Equal(t, 1, qe.Attempts)

	// nothing left to drain
	n, err = queue.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	noQueue := NewLedger(log.NewNopLogger(), cfg, writer, nil)
	_, err = noQueue.Record(context.Background(), testEntry("txn-2"))
	require.Error(t, err)
}

func TestQueue__attempts(t *testing.T) {
	db := setupLedgerDB(t)
	writer := &mockWriter{err: errors.New("bad thing")}
	queue := NewQueue(log.NewNopLogger(), db, writer, 2)

	queueID, err := queue.Enqueue(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)

	_, err = queue.Drain(context.Background())
	require.Error(t, err)
	qe, err := queue.Get(context.Background(), queueID)
	require.NoError(t, err)
	require.Equal(t, QueuePending, qe.Status)
	require.Equal(t, 1, qe.Attempts)
	require.Equal(t, "bad thing", qe.LastError)

	_, err = queue.Drain(context.Background())
	require.Error(t, err)
	qe, err = queue.Get(context.Background(), queueID)
	require.NoError(t, err)
	require.Equal(t, QueueFailed, qe.Status)
	require.Equal(t, 2, qe.Attempts)

	// failed entries are left alone
	writer.err = nil
	n, err := queue.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = queue.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestQueue__SQLWriter(t *testing.T) {
	db := setupLedgerDB(t)
	queue := NewQueue(log.NewNopLogger(), db, NewSQLWriter(testPracticeCS(), db), 3)

	_, err := queue.Enqueue(context.Background(), testEntry("txn-1"))
	require.NoError(t, err)

	n, err := queue.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var count int
	require.NoError(t, db.QueryRow(`select count(*) from Ledger_Entry where reference = 'txn-1'`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestEngagements__Accept(t *testing.T) {
	db := setupLedgerDB(t)
	cfg := testPracticeCS()
	cfg.AcceptedEngagementType = 3
	engagements := NewEngagements(cfg, db)

	newType, err := engagements.Accept(context.Background(), "501")
	require.NoError(t, err)
	require.Equal(t, "3", newType)

	var typ int
	var accepted sql.NullString
	require.NoError(t, db.QueryRow(`select engagement_type_KEY, accepted_date from Engagement where engagement_KEY = 501`).Scan(&typ, &accepted))
	require.Equal(t, 3, typ)
	require.True(t, accepted.Valid)

	_, err = engagements.Accept(context.Background(), "999")
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = engagements.Accept(context.Background(), "abc")
	require.Error(t, err)

	// without an accepted type only the acceptance date changes
	engagements = NewEngagements(testPracticeCS(), db)
	newType, err = engagements.Accept(context.Background(), "502")
	require.NoError(t, err)
	require.Empty(t, newType)
	require.NoError(t, db.QueryRow(`select engagement_type_KEY from Engagement where engagement_KEY = 502`).Scan(&typ))
	require.Equal(t, 1, typ)
}
