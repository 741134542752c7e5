// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package practicecs writes payments into the PracticeCS accounting ledger.
//
// Writes happen either during the payment (sync mode) or through a local queue
// drained by the scheduler (async mode). A failed synchronous write is never
// retried automatically and needs manual reconciliation.
package practicecs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
)

var (
	ErrInvalidEntry = errors.New("practicecs: invalid ledger entry")
	ErrNotFound     = errors.New("practicecs: not found")
)

// Entry is a payment to record against a client's ledger.
type Entry struct {
	// Reference is our transaction id, unique per ledger entry
	Reference string `json:"reference"`

	ClientKey int       `json:"clientKey"`
	Amount    int64     `json:"amount"` // cents
	Method    string    `json:"method"` // credit_card, ach, check or cash
	Comments  string    `json:"comments,omitempty"`
	Date      time.Time `json:"date"`

	// Distributions spread the payment across a client group. The primary client is
	// debited the total and each member is credited its share.
	Distributions []Distribution `json:"distributions,omitempty"`
}

type Distribution struct {
	ClientKey int   `json:"clientKey"`
	Amount    int64 `json:"amount"` // cents
}

func (e Entry) validate() error {
	if e.Reference == "" {
		return fmt.Errorf("%w: missing reference", ErrInvalidEntry)
	}
	if e.ClientKey <= 0 {
		return fmt.Errorf("%w: missing client key", ErrInvalidEntry)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if len(e.Distributions) == 0 {
		return nil
	}
	var sum int64
	for i := range e.Distributions {
		if e.Distributions[i].ClientKey <= 0 || e.Distributions[i].Amount <= 0 {
			return fmt.Errorf("%w: invalid distribution for client %d", ErrInvalidEntry, e.Distributions[i].ClientKey)
		}
		sum += e.Distributions[i].Amount
	}
	if sum != e.Amount {
		return fmt.Errorf("%w: distributions total %d, expected %d", ErrInvalidEntry, sum, e.Amount)
	}
	return nil
}

// Writer creates a ledger entry and returns its ledger key.
type Writer interface {
	Write(ctx context.Context, entry Entry) (string, error)
}

type Status string

const (
	StatusWritten  Status = "written"
	StatusDeferred Status = "deferred"
)

// Receipt says how an entry was recorded. Reference is the ledger key for written
// entries and the queue id for deferred ones.
type Receipt struct {
	Status    Status
	Reference string
}

// Ledger records entries according to the configured mode.
type Ledger struct {
	logger log.Logger
	cfg    config.PracticeCS
	writer Writer
	queue  *Queue
}

func NewLedger(logger log.Logger, cfg config.PracticeCS, writer Writer, queue *Queue) *Ledger {
	return &Ledger{
		logger: logger,
		cfg:    cfg,
		writer: writer,
		queue:  queue,
	}
}

func (l *Ledger) Record(ctx context.Context, entry Entry) (Receipt, error) {
	if err := entry.validate(); err != nil {
		ledgerWrites.With("status", "invalid").Add(1)
		return Receipt{}, err
	}
	if l.cfg.Async() {
		if l.queue == nil {
			return Receipt{}, errors.New("practicecs: async mode without a queue")
		}
		queueID, err := l.queue.Enqueue(ctx, entry)
		if err != nil {
			ledgerWrites.With("status", "failed").Add(1)
			return Receipt{}, fmt.Errorf("enqueue %s: %v", entry.Reference, err)
		}
		ledgerWrites.With("status", string(StatusDeferred)).Add(1)
		return Receipt{Status: StatusDeferred, Reference: queueID}, nil
	}

	key, err := l.writer.Write(ctx, entry)
	if err != nil {
		ledgerWrites.With("status", "failed").Add(1)
		l.logger.Log("practicecs", "ledger write failed", "reference", entry.Reference, "clientKey", entry.ClientKey, "error", err)
		return Receipt{}, err
	}
	ledgerWrites.With("status", string(StatusWritten)).Add(1)
	l.logger.Log("practicecs", "wrote ledger entry", "reference", entry.Reference, "ledgerKey", key)
	return Receipt{Status: StatusWritten, Reference: key}, nil
}
