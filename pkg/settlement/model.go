// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("settlement: not found")
	ErrInvalidTransition = errors.New("settlement: invalid status transition")

	// ErrBatchClosed is returned when an entry targets a batch that's no longer accepting entries.
	ErrBatchClosed = errors.New("settlement: batch is closed to new entries")

	ErrNoEligibleBatches = errors.New("settlement: no eligible batches")
	ErrInvalidEntry      = errors.New("settlement: invalid entry")

	// ErrAggregateMismatch means a batch's stored totals disagree with its entries.
	ErrAggregateMismatch = errors.New("settlement: batch totals do not match entries")

	// ErrTraceNumberInUse means the trace sequence wrapped onto a trace number still on record.
	ErrTraceNumberInUse = errors.New("settlement: trace number already assigned")
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntrySubmitted EntryStatus = "submitted"
	EntrySettled   EntryStatus = "settled"
	EntryReturned  EntryStatus = "returned"
)

var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryPending:   {EntrySubmitted},
	EntrySubmitted: {EntrySettled, EntryReturned},
	EntrySettled:   {EntryReturned}, // returns can arrive after funds settle
}

func (s EntryStatus) CanTransition(to EntryStatus) bool {
	for _, next := range entryTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal entries are no longer waiting on the processor.
func (s EntryStatus) Terminal() bool {
	return s == EntrySettled || s == EntryReturned
}

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchReady     BatchStatus = "ready"
	BatchGenerated BatchStatus = "generated"
	BatchSubmitted BatchStatus = "submitted"
	BatchAccepted  BatchStatus = "accepted"
	BatchSettled   BatchStatus = "settled"
	BatchCancelled BatchStatus = "cancelled"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchPending:   {BatchReady, BatchGenerated, BatchCancelled},
	BatchReady:     {BatchGenerated, BatchCancelled},
	BatchGenerated: {BatchSubmitted},
	BatchSubmitted: {BatchAccepted},
	BatchAccepted:  {BatchSettled},
}

func (s BatchStatus) CanTransition(to BatchStatus) bool {
	for _, next := range batchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileGenerated  FileStatus = "generated"
	FileSubmitted  FileStatus = "submitted"
	FileAccepted   FileStatus = "accepted"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileRejected   FileStatus = "rejected"
	FileFailed     FileStatus = "failed"
)

var fileTransitions = map[FileStatus][]FileStatus{
	FilePending:    {FileGenerated},
	FileGenerated:  {FileSubmitted, FileFailed},
	FileFailed:     {FileSubmitted, FileFailed},
	FileSubmitted:  {FileAccepted, FileRejected},
	FileAccepted:   {FileProcessing, FileCompleted},
	FileProcessing: {FileCompleted},
}

func (s FileStatus) CanTransition(to FileStatus) bool {
	for _, next := range fileTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(kind string, from, to interface{}) error {
	return fmt.Errorf("%w: %s %v to %v", ErrInvalidTransition, kind, from, to)
}

// Entry is one ACH debit. Full routing and account numbers are only stored encrypted.
type Entry struct {
	ID            string
	BatchID       string
	PaymentID     string
	TransactionID string

	IndividualName  string
	RoutingLastFour string
	AccountLastFour string

	RoutingNumberEncrypted string `json:"-"`
	AccountNumberEncrypted string `json:"-"`

	AccountType     string // checking or savings
	TransactionCode int
	Amount          int64 // cents

	Status      EntryStatus
	TraceNumber string
	ReturnCode  string

	// RetryOf is the entry a soft return retry was created from
	RetryOf    string
	RetryCount int

	// MethodID is the saved payment method the entry debits, if any
	MethodID string

	// EffectiveDate is the batch's effective entry date
	EffectiveDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Batch struct {
	ID               string
	Number           int
	SECCode          string
	EntryDescription string
	EffectiveDate    time.Time
	Status           BatchStatus
	EntryCount       int
	DebitTotal       int64
	FileID           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type File struct {
	ID     string
	Status FileStatus

	Filename string

	BatchCount        int
	EntryAddendaCount int
	EntryHash         int64
	TotalDebit        int64
	TotalCredit       int64

	// Contents is the rendered NACHA file
	Contents []byte `json:"-"`

	GatewayReference string
	RejectionReason  string
	UploadAttempts   int

	GeneratedAt time.Time
	SubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntry is a debit to accumulate into the open batch for its SEC code and effective date.
type NewEntry struct {
	PaymentID     string
	TransactionID string

	IndividualName string
	RoutingNumber  string
	AccountNumber  string
	AccountType    string // checking or savings

	Amount  int64 // cents
	SECCode string

	MethodID   string
	RetryOf    string
	RetryCount int

	// DelayDays pushes the effective date back by that many banking days
	DelayDays int
}

// Correction holds the new values from a Notification of Change. Empty fields are unchanged.
type Correction struct {
	RoutingNumber   string
	AccountNumber   string
	AccountType     string
	TransactionCode int
}

func (c Correction) Empty() bool {
	return c.RoutingNumber == "" && c.AccountNumber == "" && c.AccountType == "" && c.TransactionCode == 0
}

type ReturnKind string

const (
	KindCorrection ReturnKind = "noc"
	KindSoft       ReturnKind = "soft"
	KindHard       ReturnKind = "hard"
)

// ReturnRecord is a processed return or correction, stored once per trace number and code.
type ReturnRecord struct {
	TraceNumber   string
	Code          string
	EntryID       string
	Kind          ReturnKind
	CorrectedData string
	ProcessedAt   time.Time
}
