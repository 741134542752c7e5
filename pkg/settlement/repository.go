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

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
)

const dateFormat = "2006-01-02"

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type SQLRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (r *SQLRepository) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return database.Tx(ctx, r.db, fn)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func affected(res sql.Result) int64 {
	n, _ := res.RowsAffected()
	return n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Batches

const batchColumns = `batch_id, batch_number, sec_code, company_entry_description, effective_date, status, entry_count, debit_total, file_id, created_at, updated_at`

func scanBatch(row scanner) (*Batch, error) {
	var (
		b         Batch
		effective string
		status    string
		fileID    sql.NullString
	)
	err := row.Scan(&b.ID, &b.Number, &b.SECCode, &b.EntryDescription, &effective, &status, &b.EntryCount, &b.DebitTotal, &fileID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = BatchStatus(status)
	b.FileID = fileID.String
	if b.EffectiveDate, err = time.Parse(dateFormat, effective); err != nil {
		return nil, fmt.Errorf("batch %s effective date: %v", b.ID, err)
	}
	return &b, nil
}

func queryBatches(ctx context.Context, q querier, query string, args ...interface{}) ([]*Batch, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLRepository) insertBatch(ctx context.Context, q querier, b *Batch) error {
	query := `insert into ach_batches (batch_id, batch_number, sec_code, company_entry_description, effective_date, status, entry_count, debit_total, file_id, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, b.ID, b.Number, b.SECCode, b.EntryDescription, b.EffectiveDate.Format(dateFormat),
		b.Status, b.EntryCount, b.DebitTotal, nullString(b.FileID), b.CreatedAt, b.UpdatedAt)
	return err
}

// findOpenBatch returns the oldest pending, unlinked batch for the key with room for another
// entry, or nil when there is none.
func (r *SQLRepository) findOpenBatch(ctx context.Context, q querier, secCode string, effective time.Time, maxEntries int) (*Batch, error) {
	query := `select ` + batchColumns + ` from ach_batches
where sec_code = ? and effective_date = ? and status = ? and file_id is null and entry_count < ?
order by created_at asc limit 1`
	b, err := scanBatch(q.QueryRowContext(ctx, query, secCode, effective.Format(dateFormat), BatchPending, maxEntries))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *SQLRepository) getBatch(ctx context.Context, q querier, batchID string) (*Batch, error) {
	b, err := scanBatch(q.QueryRowContext(ctx, `select `+batchColumns+` from ach_batches where batch_id = ? limit 1`, batchID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return b, err
}

// eligibleBatches are pending or ready batches which haven't been written into a file.
func (r *SQLRepository) eligibleBatches(ctx context.Context, q querier, limit int) ([]*Batch, error) {
	query := `select ` + batchColumns + ` from ach_batches
where status in (?, ?) and file_id is null and entry_count > 0
order by effective_date asc, created_at asc limit ?`
	return queryBatches(ctx, q, query, BatchPending, BatchReady, limit)
}

func (r *SQLRepository) fileBatches(ctx context.Context, q querier, fileID string) ([]*Batch, error) {
	return queryBatches(ctx, q, `select `+batchColumns+` from ach_batches where file_id = ? order by batch_number asc`, fileID)
}

func (r *SQLRepository) listBatches(ctx context.Context, q querier, statuses ...BatchStatus) ([]*Batch, error) {
	query := `select ` + batchColumns + ` from ach_batches`
	var args []interface{}
	if len(statuses) > 0 {
		query += ` where status in (` + placeholders(len(statuses)) + `)`
		for i := range statuses {
			args = append(args, statuses[i])
		}
	}
	query += ` order by effective_date asc, created_at asc`
	return queryBatches(ctx, q, query, args...)
}

// recordBatchEntry adds an entry's amount to the batch totals, only while the batch is open.
func (r *SQLRepository) recordBatchEntry(ctx context.Context, q querier, batchID string, amount int64) error {
	query := `update ach_batches set entry_count = entry_count + 1, debit_total = debit_total + ?, updated_at = ?
where batch_id = ? and status = ? and file_id is null`
	res, err := q.ExecContext(ctx, query, amount, r.now(), batchID, BatchPending)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return ErrBatchClosed
	}
	return nil
}

func (r *SQLRepository) setBatchStatus(ctx context.Context, q querier, batchID string, from, to BatchStatus) error {
	if !from.CanTransition(to) {
		return transitionError("batch", from, to)
	}
	res, err := q.ExecContext(ctx, `update ach_batches set status = ?, updated_at = ? where batch_id = ? and status = ?`, to, r.now(), batchID, from)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return transitionError("batch", from, to)
	}
	return nil
}

// freezeBatch links a batch to its file. The stored totals must still be what generation
// verified, otherwise an entry slipped in and the file is stale.
func (r *SQLRepository) freezeBatch(ctx context.Context, q querier, b *Batch, fileID string, number int) error {
	query := `update ach_batches set status = ?, file_id = ?, batch_number = ?, updated_at = ?
where batch_id = ? and status in (?, ?) and file_id is null and entry_count = ? and debit_total = ?`
	res, err := q.ExecContext(ctx, query, BatchGenerated, fileID, number, r.now(), b.ID, BatchPending, BatchReady, b.EntryCount, b.DebitTotal)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return fmt.Errorf("%w: batch %s changed during generation", ErrAggregateMismatch, b.ID)
	}
	return nil
}

func (r *SQLRepository) closePendingBatches(ctx context.Context, q querier) (int64, error) {
	res, err := q.ExecContext(ctx, `update ach_batches set status = ?, updated_at = ? where status = ? and file_id is null`, BatchReady, r.now(), BatchPending)
	if err != nil {
		return 0, err
	}
	return affected(res), nil
}

// Entries

const entryColumns = `e.entry_id, e.batch_id, e.payment_id, e.transaction_id, e.individual_name, e.routing_last_four, e.account_last_four,
e.routing_number_encrypted, e.account_number_encrypted, e.account_type, e.transaction_code, e.amount, e.status, e.trace_number,
e.return_code, e.retry_of, e.retry_count, e.method_id, e.created_at, e.updated_at, b.effective_date`

const entryFrom = ` from ach_entries e inner join ach_batches b on e.batch_id = b.batch_id`

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                          Entry
		status, effective          string
		trace, returnCode, retryOf sql.NullString
		paymentID, transactionID   sql.NullString
		methodID                   sql.NullString
	)
	err := row.Scan(&e.ID, &e.BatchID, &paymentID, &transactionID, &e.IndividualName, &e.RoutingLastFour, &e.AccountLastFour,
		&e.RoutingNumberEncrypted, &e.AccountNumberEncrypted, &e.AccountType, &e.TransactionCode, &e.Amount, &status, &trace,
		&returnCode, &retryOf, &e.RetryCount, &methodID, &e.CreatedAt, &e.UpdatedAt, &effective)
	if err != nil {
		return nil, err
	}
	e.Status = EntryStatus(status)
	e.PaymentID = paymentID.String
	e.TransactionID = transactionID.String
	e.TraceNumber = trace.String
	e.ReturnCode = returnCode.String
	e.RetryOf = retryOf.String
	e.MethodID = methodID.String
	if e.EffectiveDate, err = time.Parse(dateFormat, effective); err != nil {
		return nil, fmt.Errorf("entry %s effective date: %v", e.ID, err)
	}
	return &e, nil
}

func queryEntries(ctx context.Context, q querier, query string, args ...interface{}) ([]*Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) insertEntry(ctx context.Context, q querier, e *Entry) error {
	query := `insert into ach_entries (entry_id, batch_id, payment_id, transaction_id, individual_name, routing_last_four, account_last_four,
routing_number_encrypted, account_number_encrypted, account_type, transaction_code, amount, status, trace_number, return_code,
retry_of, retry_count, method_id, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, e.ID, e.BatchID, nullString(e.PaymentID), nullString(e.TransactionID), e.IndividualName,
		e.RoutingLastFour, e.AccountLastFour, e.RoutingNumberEncrypted, e.AccountNumberEncrypted, e.AccountType, e.TransactionCode,
		e.Amount, e.Status, nullString(e.TraceNumber), nullString(e.ReturnCode), nullString(e.RetryOf), e.RetryCount,
		nullString(e.MethodID), e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *SQLRepository) getEntry(ctx context.Context, q querier, entryID string) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `select `+entryColumns+entryFrom+` where e.entry_id = ? limit 1`, entryID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *SQLRepository) getEntryByTrace(ctx context.Context, q querier, traceNumber string) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `select `+entryColumns+entryFrom+` where e.trace_number = ? limit 1`, traceNumber))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// getRetry returns the entry accumulated to retry originalID.
func (r *SQLRepository) getRetry(ctx context.Context, q querier, originalID string) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `select `+entryColumns+entryFrom+` where e.retry_of = ? order by e.created_at asc limit 1`, originalID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *SQLRepository) listEntries(ctx context.Context, q querier, batchID string) ([]*Entry, error) {
	return queryEntries(ctx, q, `select `+entryColumns+entryFrom+` where e.batch_id = ? order by e.created_at asc, e.entry_id asc`, batchID)
}

func (r *SQLRepository) setEntryTrace(ctx context.Context, q querier, entryID, traceNumber string) error {
	res, err := q.ExecContext(ctx, `update ach_entries set trace_number = ?, updated_at = ? where entry_id = ? and trace_number is null`, traceNumber, r.now(), entryID)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return fmt.Errorf("entry %s already has a trace number", entryID)
	}
	return nil
}

func (r *SQLRepository) setBatchEntriesStatus(ctx context.Context, q querier, batchID string, from, to EntryStatus) (int64, error) {
	if !from.CanTransition(to) {
		return 0, transitionError("entry", from, to)
	}
	res, err := q.ExecContext(ctx, `update ach_entries set status = ?, updated_at = ? where batch_id = ? and status = ?`, to, r.now(), batchID, from)
	if err != nil {
		return 0, err
	}
	return affected(res), nil
}

func (r *SQLRepository) returnEntry(ctx context.Context, q querier, e *Entry, code string) error {
	if !e.Status.CanTransition(EntryReturned) {
		return transitionError("entry", e.Status, EntryReturned)
	}
	res, err := q.ExecContext(ctx, `update ach_entries set status = ?, return_code = ?, updated_at = ? where entry_id = ? and status = ?`,
		EntryReturned, code, r.now(), e.ID, e.Status)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return transitionError("entry", e.Status, EntryReturned)
	}
	return nil
}

func (r *SQLRepository) setEntryStatus(ctx context.Context, q querier, e *Entry, to EntryStatus) error {
	if !e.Status.CanTransition(to) {
		return transitionError("entry", e.Status, to)
	}
	res, err := q.ExecContext(ctx, `update ach_entries set status = ?, updated_at = ? where entry_id = ? and status = ?`, to, r.now(), e.ID, e.Status)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return transitionError("entry", e.Status, to)
	}
	e.Status = to
	return nil
}

func (r *SQLRepository) updateEntryAccount(ctx context.Context, q querier, e *Entry) error {
	query := `update ach_entries set routing_last_four = ?, account_last_four = ?, routing_number_encrypted = ?, account_number_encrypted = ?,
account_type = ?, transaction_code = ?, updated_at = ? where entry_id = ?`
	_, err := q.ExecContext(ctx, query, e.RoutingLastFour, e.AccountLastFour, e.RoutingNumberEncrypted, e.AccountNumberEncrypted,
		e.AccountType, e.TransactionCode, r.now(), e.ID)
	return err
}

// Files

const fileColumns = `file_id, filename, status, batch_count, entry_addenda_count, entry_hash, total_debit, total_credit, contents,
gateway_reference, rejection_reason, upload_attempts, generated_at, submitted_at, created_at, updated_at`

func scanFile(row scanner, withContents bool) (*File, error) {
	var (
		f                 File
		status            string
		contents          []byte
		reference, reason sql.NullString
		submitted         sql.NullTime
	)
	err := row.Scan(&f.ID, &f.Filename, &status, &f.BatchCount, &f.EntryAddendaCount, &f.EntryHash, &f.TotalDebit, &f.TotalCredit,
		&contents, &reference, &reason, &f.UploadAttempts, &f.GeneratedAt, &submitted, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Status = FileStatus(status)
	f.GatewayReference = reference.String
	f.RejectionReason = reason.String
	if submitted.Valid {
		t := submitted.Time
		f.SubmittedAt = &t
	}
	if withContents {
		f.Contents = contents
	}
	return &f, nil
}

func (r *SQLRepository) insertFile(ctx context.Context, q querier, f *File) error {
	query := `insert into ach_files (file_id, filename, status, batch_count, entry_addenda_count, entry_hash, total_debit, total_credit,
contents, gateway_reference, rejection_reason, upload_attempts, generated_at, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, f.ID, f.Filename, f.Status, f.BatchCount, f.EntryAddendaCount, f.EntryHash, f.TotalDebit,
		f.TotalCredit, f.Contents, nullString(f.GatewayReference), nullString(f.RejectionReason), f.UploadAttempts, f.GeneratedAt,
		f.CreatedAt, f.UpdatedAt)
	return err
}

func (r *SQLRepository) getFile(ctx context.Context, q querier, fileID string) (*File, error) {
	f, err := scanFile(q.QueryRowContext(ctx, `select `+fileColumns+` from ach_files where file_id = ? limit 1`, fileID), true)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

// getFileByReference finds a file by the processor's reference, falling back to its filename.
func (r *SQLRepository) getFileByReference(ctx context.Context, q querier, reference, filename string) (*File, error) {
	query := `select ` + fileColumns + ` from ach_files where (gateway_reference = ? and gateway_reference <> '') or (filename = ? and filename <> '') limit 1`
	f, err := scanFile(q.QueryRowContext(ctx, query, reference, filename), false)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *SQLRepository) listFiles(ctx context.Context, q querier, statuses ...FileStatus) ([]*File, error) {
	query := `select ` + fileColumns + ` from ach_files`
	var args []interface{}
	if len(statuses) > 0 {
		query += ` where status in (` + placeholders(len(statuses)) + `)`
		for i := range statuses {
			args = append(args, statuses[i])
		}
	}
	query += ` order by generated_at asc`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		f, err := scanFile(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLRepository) countFilesGenerated(ctx context.Context, q querier, start, end time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `select count(*) from ach_files where generated_at >= ? and generated_at < ?`, start, end).Scan(&n)
	return n, err
}

func (r *SQLRepository) markFileSubmitted(ctx context.Context, q querier, f *File, reference string, at time.Time) error {
	if !f.Status.CanTransition(FileSubmitted) {
		return transitionError("file", f.Status, FileSubmitted)
	}
	query := `update ach_files set status = ?, gateway_reference = ?, submitted_at = ?, upload_attempts = upload_attempts + 1, updated_at = ?
where file_id = ? and status = ?`
	res, err := q.ExecContext(ctx, query, FileSubmitted, nullString(reference), at, r.now(), f.ID, f.Status)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return transitionError("file", f.Status, FileSubmitted)
	}
	return nil
}

func (r *SQLRepository) markFileFailed(ctx context.Context, q querier, f *File) error {
	if !f.Status.CanTransition(FileFailed) {
		return transitionError("file", f.Status, FileFailed)
	}
	query := `update ach_files set status = ?, upload_attempts = upload_attempts + 1, updated_at = ? where file_id = ? and status = ?`
	_, err := q.ExecContext(ctx, query, FileFailed, r.now(), f.ID, f.Status)
	return err
}

func (r *SQLRepository) setFileStatus(ctx context.Context, q querier, f *File, to FileStatus, reason string) error {
	if !f.Status.CanTransition(to) {
		return transitionError("file", f.Status, to)
	}
	query := `update ach_files set status = ?, rejection_reason = ?, updated_at = ? where file_id = ? and status = ?`
	res, err := q.ExecContext(ctx, query, to, nullString(reason), r.now(), f.ID, f.Status)
	if err != nil {
		return err
	}
	if affected(res) != 1 {
		return transitionError("file", f.Status, to)
	}
	return nil
}

// Sequences

// nextSequence reserves n values from the named counter and returns the first.
func (r *SQLRepository) nextSequence(ctx context.Context, q querier, name string, n int) (int64, error) {
	res, err := q.ExecContext(ctx, `update ach_sequences set value = value + ? where name = ?`, n, name)
	if err != nil {
		return 0, err
	}
	if affected(res) == 0 {
		if _, err := q.ExecContext(ctx, `insert into ach_sequences (name, value) values (?, ?)`, name, n); err != nil {
			return 0, err
		}
	}
	var last int64
	if err := q.QueryRowContext(ctx, `select value from ach_sequences where name = ?`, name).Scan(&last); err != nil {
		return 0, err
	}
	return last - int64(n) + 1, nil
}

// Returns

func (r *SQLRepository) insertReturn(ctx context.Context, q querier, rec ReturnRecord) error {
	query := `insert into ach_returns (trace_number, code, entry_id, kind, corrected_data, processed_at) values (?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query, rec.TraceNumber, rec.Code, nullString(rec.EntryID), rec.Kind, nullString(rec.CorrectedData), rec.ProcessedAt)
	return err
}

// Exported reads

func (r *SQLRepository) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	return r.getEntry(ctx, r.db, entryID)
}

func (r *SQLRepository) GetEntryByTrace(ctx context.Context, traceNumber string) (*Entry, error) {
	return r.getEntryByTrace(ctx, r.db, traceNumber)
}

func (r *SQLRepository) ListEntries(ctx context.Context, batchID string) ([]*Entry, error) {
	return r.listEntries(ctx, r.db, batchID)
}

func (r *SQLRepository) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	return r.getBatch(ctx, r.db, batchID)
}

func (r *SQLRepository) ListBatches(ctx context.Context, statuses ...BatchStatus) ([]*Batch, error) {
	return r.listBatches(ctx, r.db, statuses...)
}

func (r *SQLRepository) GetFile(ctx context.Context, fileID string) (*File, error) {
	return r.getFile(ctx, r.db, fileID)
}

func (r *SQLRepository) ListFiles(ctx context.Context, statuses ...FileStatus) ([]*File, error) {
	return r.listFiles(ctx, r.db, statuses...)
}

func (r *SQLRepository) FileBatches(ctx context.Context, fileID string) ([]*Batch, error) {
	return r.fileBatches(ctx, r.db, fileID)
}

// HasReturn reports whether (traceNumber, code) was already processed.
func (r *SQLRepository) HasReturn(ctx context.Context, traceNumber, code string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `select count(*) from ach_returns where trace_number = ? and code = ?`, traceNumber, code).Scan(&n)
	return n > 0, err
}

// RecordReturn stores rec once and, when markReturned is set, moves its entry to returned
// in the same transaction. It returns false when (trace number, code) was already processed.
func (r *SQLRepository) RecordReturn(ctx context.Context, rec ReturnRecord, markReturned bool) (bool, error) {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = r.now()
	}
	var duplicate bool
	err := r.tx(ctx, func(tx *sql.Tx) error {
		if err := r.insertReturn(ctx, tx, rec); err != nil {
			if database.UniqueViolation(err) {
				duplicate = true
				return errDuplicate
			}
			return err
		}
		if !markReturned || rec.EntryID == "" {
			return nil
		}
		entry, err := r.getEntry(ctx, tx, rec.EntryID)
		if err != nil {
			return err
		}
		return r.returnEntry(ctx, tx, entry, rec.Code)
	})
	if duplicate {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var errDuplicate = errors.New("duplicate")
