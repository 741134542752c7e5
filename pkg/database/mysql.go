// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/lopezator/migrator"
)

var (
	// mySQLErrDuplicateKey is the error code for duplicate entries
	// https://dev.mysql.com/doc/refman/8.0/en/server-error-reference.html#error_er_dup_entry
	mySQLErrDuplicateKey uint16 = 1062

	mysqlMigrations = migrator.Migrations(
		execsql(
			"create_payments",
			`create table if not exists payments(payment_id varchar(40) primary key, transaction_id varchar(40) not null, gateway_transaction_id varchar(100), customer_ref varchar(100), client_key varchar(40), amount bigint, fee bigint, total bigint, method varchar(20), charge_method varchar(10), last_four varchar(4), description varchar(250), invoices varchar(500), source varchar(10), created_at datetime);`,
		),
		execsql(
			"create_payments_transaction_id_idx",
			`create unique index payments_transaction_id on payments (transaction_id);`,
		),
		execsql(
			"create_payment_attempts",
			`create table if not exists payment_attempts(transaction_id varchar(40) primary key, status varchar(10), error varchar(500), created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_payment_methods",
			`create table if not exists payment_methods(method_id varchar(40) primary key, customer_ref varchar(100), type varchar(10), name varchar(100), last_four varchar(4), routing_number_encrypted varchar(500), account_number_encrypted varchar(500), account_type varchar(10), holder_type varchar(10), card_token varchar(200), expiration varchar(7), created_at datetime, updated_at datetime, deleted_at datetime);`,
		),
		execsql(
			"create_engagement_acceptances",
			`create table if not exists engagement_acceptances(engagement_key varchar(40) primary key, transaction_id varchar(40), new_type_key varchar(40), accepted_at datetime);`,
		),
		execsql(
			"create_ach_batches",
			`create table if not exists ach_batches(batch_id varchar(40) primary key, batch_number integer, sec_code varchar(3), company_entry_description varchar(10), effective_date varchar(10), status varchar(10), entry_count integer, debit_total bigint, file_id varchar(40), created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_ach_batches_key_idx",
			`create index ach_batches_key on ach_batches (sec_code, effective_date, status);`,
		),
		execsql(
			"create_ach_entries",
			`create table if not exists ach_entries(entry_id varchar(40) primary key, batch_id varchar(40) not null, payment_id varchar(40), transaction_id varchar(40), individual_name varchar(22), routing_last_four varchar(4), account_last_four varchar(4), routing_number_encrypted varchar(500), account_number_encrypted varchar(500), account_type varchar(10), transaction_code integer, amount bigint, status varchar(10), trace_number varchar(15), return_code varchar(3), retry_of varchar(40), retry_count integer, method_id varchar(40), created_at datetime, updated_at datetime);`,
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
			`create table if not exists ach_files(file_id varchar(40) primary key, filename varchar(100), status varchar(10), batch_count integer, entry_addenda_count integer, entry_hash bigint, total_debit bigint, total_credit bigint, contents mediumtext, gateway_reference varchar(100), rejection_reason varchar(500), upload_attempts integer, generated_at datetime, submitted_at datetime, created_at datetime, updated_at datetime);`,
		),
		execsql(
			"create_ach_sequences",
			`create table if not exists ach_sequences(name varchar(40) primary key, value bigint);`,
		),
		execsql(
			"create_ach_returns",
			`create table if not exists ach_returns(trace_number varchar(15) not null, code varchar(3) not null, entry_id varchar(40), kind varchar(10), corrected_data varchar(40), processed_at datetime, unique(trace_number, code));`,
		),
		execsql(
			"create_ledger_queue",
			`create table if not exists ledger_queue(queue_id varchar(40) primary key, transaction_id varchar(40), payload text, status varchar(10), attempts integer, last_error varchar(500), created_at datetime, updated_at datetime);`,
		),
	)
)

type discardLogger struct{}

func (l discardLogger) Print(v ...interface{}) {}

func init() {
	gomysql.SetLogger(discardLogger{})
}

type mysql struct {
	dsn    string
	logger log.Logger
}

func (my *mysql) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", my.dsn)
	if err != nil {
		return nil, err
	}

	// Check out DB is up and working
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := migrate(db, mysqlMigrations); err != nil {
		return nil, err
	}
	my.logger.Log("mysql", "migrations complete")

	return db, nil
}

func mysqlConnection(logger log.Logger, user, pass string, address string, database string) *mysql {
	dsn := fmt.Sprintf("%s:%s@%s/%s?%s", user, pass, address, database, "timeout=30s&tls=false&charset=utf8mb4&parseTime=true&sql_mode=ALLOW_INVALID_DATES")
	return &mysql{
		dsn:    dsn,
		logger: logger,
	}
}

// MySQLUniqueViolation returns true when the provided error matches the MySQL code
// for duplicate entries (violating a unique table constraint).
func MySQLUniqueViolation(err error) bool {
	match := err != nil && strings.Contains(err.Error(), "Duplicate entry")
	if e, ok := err.(*gomysql.MySQLError); ok {
		return match || e.Number == mySQLErrDuplicateKey
	}
	return match
}
