// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package practicecs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueWritten QueueStatus = "written"
	QueueFailed  QueueStatus = "failed"
)

const drainBatchSize = 100

// QueuedEntry is a deferred ledger write stored in our database.
type QueuedEntry struct {
	ID        string
	Entry     Entry
	Status    QueueStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Queue holds ledger entries until Drain writes them. Entries that fail
// maxAttempts times are marked failed and left for manual reconciliation.
type Queue struct {
	logger      log.Logger
	db          *sql.DB
	writer      Writer
	maxAttempts int

	now func() time.Time
}

func NewQueue(logger log.Logger, db *sql.DB, writer Writer, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Queue{
		logger:      logger,
		db:          db,
		writer:      writer,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Enqueue stores entry once per reference and returns its queue id.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) (string, error) {
	var existing string
	err := q.db.QueryRowContext(ctx, `select queue_id from ledger_queue where transaction_id = ? limit 1;`, entry.Reference).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	queueID := base.ID()
	now := q.now().UTC()
	query := `insert into ledger_queue (queue_id, transaction_id, payload, status, attempts, last_error, created_at, updated_at) values (?, ?, ?, ?, 0, '', ?, ?);`
	if _, err := q.db.ExecContext(ctx, query, queueID, entry.Reference, string(payload), QueuePending, now, now); err != nil {
		return "", err
	}
	return queueID, nil
}

func (q *Queue) Get(ctx context.Context, queueID string) (*QueuedEntry, error) {
	row := q.db.QueryRowContext(ctx, `select queue_id, payload, status, attempts, last_error, created_at, updated_at from ledger_queue where queue_id = ? limit 1;`, queueID)
	qe, err := scanQueued(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return qe, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQueued(row scanner) (*QueuedEntry, error) {
	var qe QueuedEntry
	var payload string
	if err := row.Scan(&qe.ID, &payload, &qe.Status, &qe.Attempts, &qe.LastError, &qe.CreatedAt, &qe.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &qe.Entry); err != nil {
		return nil, fmt.Errorf("queued entry %s: %v", qe.ID, err)
	}
	return &qe, nil
}

func (q *Queue) pending(ctx context.Context) ([]*QueuedEntry, error) {
	query := `select queue_id, payload, status, attempts, last_error, created_at, updated_at from ledger_queue
where status = ? and attempts < ? order by created_at asc limit ?;`
	rows, err := q.db.QueryContext(ctx, query, QueuePending, q.maxAttempts, drainBatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*QueuedEntry
	for rows.Next() {
		qe, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qe)
	}
	return out, rows.Err()
}

// Drain writes pending entries and returns how many were written.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	entries, err := q.pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger queue: %v", err)
	}

	var el base.ErrorList
	written := 0
	for _, qe := range entries {
		key, err := q.writer.Write(ctx, qe.Entry)
		if err == nil {
			if err := q.update(ctx, qe, QueueWritten, ""); err != nil {
				el.Add(err)
				continue
			}
			written++
			queueDrained.With("status", string(QueueWritten)).Add(1)
			q.logger.Log("practicecs", "wrote queued ledger entry", "queueID", qe.ID, "reference", qe.Entry.Reference, "ledgerKey", key)
			continue
		}

		status := QueuePending
		if qe.Attempts+1 >= q.maxAttempts {
			status = QueueFailed
		}
		queueDrained.With("status", string(status)).Add(1)
		q.logger.Log("practicecs", "queued ledger write failed", "queueID", qe.ID, "attempt", qe.Attempts+1, "error", err)
		if uerr := q.update(ctx, qe, status, err.Error()); uerr != nil {
			el.Add(uerr)
		}
		el.Add(fmt.Errorf("queued entry %s: %v", qe.ID, err))
	}
	if el.Empty() {
		return written, nil
	}
	return written, el
}

func (q *Queue) update(ctx context.Context, qe *QueuedEntry, status QueueStatus, lastError string) error {
	attempts := qe.Attempts + 1
	query := `update ledger_queue set status = ?, attempts = ?, last_error = ?, updated_at = ? where queue_id = ?;`
	if _, err := q.db.ExecContext(ctx, query, status, attempts, lastError, q.now().UTC(), qe.ID); err != nil {
		return fmt.Errorf("update queued entry %s: %v", qe.ID, err)
	}
	qe.Status, qe.Attempts, qe.LastError = status, attempts, lastError
	return nil
}
