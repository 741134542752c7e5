// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/lopezator/migrator"
	"github.com/mattn/go-sqlite3"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	sqliteConnections = kitprom.NewGaugeFrom(stdprom.GaugeOpts{
		Name: "sqlite_connections",
		Help: "How many sqlite connections and what status they're in.",
	}, []string{"state"})

	sqliteVersionLogOnce sync.Once

	sqliteMigrations = migrator.Migrations(
		execsql(
			"create_payments",
			`create table if not exists payments(payment_id primary key, transaction_id not null, gateway_transaction_id, customer_ref, client_key, amount integer, fee integer, total integer, method, charge_method, last_four, description, invoices, source, created_at datetime);`,
		),
		execsql(
			"create_payments_transaction_id_idx",
			`create unique index payments_transaction_id on payments (transaction_id);`,
		),
		execsql(
			"create_payment_attempts",
			`create table if not exists payment_attempts(transaction_id primary key, status, error, created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_payment_methods",
			`create table if not exists payment_methods(method_id primary key, customer_ref, type, name, last_four, routing_number_encrypted, account_number_encrypted, account_type, holder_type, card_token, expiration, created_at datetime, updated_at datetime, deleted_at datetime);`,
		),
		execsql(
			"create_engagement_acceptances",
			`create table if not exists engagement_acceptances(engagement_key primary key, transaction_id, new_type_key, accepted_at datetime);`,
		),
		execsql(
			"create_ach_batches",
			`create table if not exists ach_batches(batch_id primary key, batch_number integer, sec_code, company_entry_description, effective_date, status, entry_count integer, debit_total integer, file_id, created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_ach_batches_key_idx",
			`create index ach_batches_key on ach_batches (sec_code, effective_date, status);`,
		),
		execsql(
			"create_ach_entries",
			`create table if not exists ach_entries(entry_id primary key, batch_id not null, payment_id, transaction_id, individual_name, routing_last_four, account_last_four, routing_number_encrypted, account_number_encrypted, account_type, transaction_code integer, amount integer, status, trace_number, return_code, retry_of, retry_count integer, method_id, created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_ach_entries_batch_idx",
			`create index ach_entries_batch on ach_entries (batch_id);`,
		),
		execsql(
			"create_ach_entries_trace_idx",
			`create unique index ach_entries_trace on ach_entries (trace_number);`,
		),
		execsql(
			"create_ach_files",
			`create table if not exists ach_files(file_id primary key, filename, status, batch_count integer, entry_addenda_count integer, entry_hash integer, total_debit integer, total_credit integer, contents, gateway_reference, rejection_reason, upload_attempts integer, generated_at datetime, submitted_at datetime, created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_ach_sequences",
			`create table if not exists ach_sequences(name primary key, value integer);`,
		),
		execsql(
			"create_ach_returns",
			`create table if not exists ach_returns(trace_number not null, code not null, entry_id, kind, corrected_data, processed_at datetime, unique(trace_number, code));`,
		),
		execsql(
			"create_ledger_queue",
			`create table if not exists ledger_queue(queue_id primary key, transaction_id, payload, status, attempts integer, last_error, created_at datetime, updated_at datetime);`,
		),
	)
)

type sqlite struct {
	path string

	connections *kitprom.Gauge
	logger      log.Logger

	err error
}

func (s *sqlite) Connect(ctx context.Context) (*sql.DB, error) {
	if s == nil {
		return nil, fmt.Errorf("nil %T", s)
	}
	if s.err != nil {
		return nil, fmt.Errorf("sqlite had error %v", s.err)
	}

	sqliteVersionLogOnce.Do(func() {
		if v, _, _ := sqlite3.Version(); v != "" {
			s.logger.Log("main", fmt.Sprintf("sqlite version %s", v))
		}
	})

	db, err := sql.Open("sqlite3", s.path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return db, err
	}

	if err := migrate(db, sqliteMigrations); err != nil {
		return db, err
	}

	// Spin up metrics only after everything works
	go func() {
		t := time.NewTicker(1 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				stats := db.Stats()
				s.connections.With("state", "idle").Set(float64(stats.Idle))
				s.connections.With("state", "inuse").Set(float64(stats.InUse))
				s.connections.With("state", "open").Set(float64(stats.OpenConnections))
			}
		}
	}()

	return db, err
}

func sqliteConnection(logger log.Logger, path string) *sqlite {
	if path == "" || strings.Contains(path, "..") {
		// set default if empty or trying to escape
		// don't filepath.ABS to avoid full-fs reads
		path = "trpay.db"
	}
	return &sqlite{
		path:        path,
		logger:      logger,
		connections: sqliteConnections,
	}
}

// TestSQLiteDB is a wrapper around sql.DB for SQLite connections designed for tests to provide
// a clean database for each testcase.  Callers should cleanup with Close() when finished.
type TestSQLiteDB struct {
	DB *sql.DB

	dir string // temp dir created for sqlite files

	shutdown func() // context shutdown func
}

func (r *TestSQLiteDB) Close() error {
	r.shutdown()

	if err := r.DB.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dir)
}

// CreateTestSqliteDB returns a TestSQLiteDB which can be used in tests
// as a clean sqlite database. All migrations are ran on the db before.
//
// The database is closed when the test finishes.
func CreateTestSqliteDB(t *testing.T) *TestSQLiteDB {
	t.Helper()

	dir, err := ioutil.TempDir("", "trpay-sqlite")
	if err != nil {
		t.Fatalf("sqlite test: %v", err)
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	db, err := sqliteConnection(log.NewNopLogger(), filepath.Join(dir, "trpay.db")).Connect(ctx)
	if err != nil {
		cancelFunc()
		t.Fatalf("sqlite test: %v", err)
	}

	// A single connection serializes writers so tests never see SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	testDB := &TestSQLiteDB{DB: db, dir: dir, shutdown: cancelFunc}
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

// SqliteUniqueViolation returns true when the provided error matches the SQLite error
// for duplicate entries (violating a unique table constraint).
func SqliteUniqueViolation(err error) bool {
	match := strings.Contains(err.Error(), "UNIQUE constraint failed")
	if e, ok := err.(sqlite3.Error); ok {
		return match || e.Code == sqlite3.ErrConstraint
	}
	return match
}
