// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/ach"
)

// Batch is one group of debits sharing an SEC code and effective date.
type Batch struct {
	ID               string
	Number           int
	SECCode          string
	EntryDescription string
	EffectiveDate    time.Time
	Entries          []Entry

	// OffsetTraceNumber is used for the balancing credit when Options.BalanceEntries is set.
	OffsetTraceNumber string
}

// Entry is one debit with its decrypted account details.
type Entry struct {
	ID             string
	IndividualName string
	RoutingNumber  string
	AccountNumber  string
	AccountType    string // checking or savings
	Amount         int64  // cents
	TraceNumber    string
	Identification string
}

// DebitTotal sums every entry in the batch.
func (b Batch) DebitTotal() int64 {
	var total int64
	for i := range b.Entries {
		total += b.Entries[i].Amount
	}
	return total
}

// makeBatchHeader creates an ach.BatchHeader for a Batch.
func makeBatchHeader(options Options, b Batch, now time.Time) *ach.BatchHeader {
	batchHeader := ach.NewBatchHeader()
	batchHeader.ID = b.ID

	if options.BalanceEntries {
		batchHeader.ServiceClassCode = ach.MixedDebitsAndCredits
	} else {
		batchHeader.ServiceClassCode = ach.DebitsOnly
	}

	batchHeader.CompanyName = truncate(options.CompanyName, 16)
	batchHeader.CompanyIdentification = options.CompanyIdentification
	batchHeader.StandardEntryClassCode = strings.ToUpper(b.SECCode)
	batchHeader.CompanyEntryDescription = truncate(b.EntryDescription, 10) // 10 character max

	batchHeader.CompanyDescriptiveDate = now.In(options.location()).Format("060102")
	batchHeader.EffectiveEntryDate = b.EffectiveDate.Format("060102") // Date to be posted, YYMMDD
	batchHeader.ODFIIdentification = ABA8(options.ODFIRoutingNumber)
	batchHeader.BatchNumber = b.Number

	return batchHeader
}

func createBatch(options Options, b Batch, now time.Time) (ach.Batcher, error) {
	if len(b.Entries) == 0 {
		return nil, fmt.Errorf("batch %d has no entries", b.Number)
	}
	switch strings.ToUpper(b.SECCode) {
	case ach.WEB, ach.PPD, ach.CCD, ach.TEL:
	default:
		return nil, fmt.Errorf("unsupported SEC code %q", b.SECCode)
	}
	if options.BalanceEntries && strings.EqualFold(b.SECCode, ach.TEL) {
		return nil, errors.New("TEL batches can only contain debits")
	}

	batch, err := ach.NewBatch(makeBatchHeader(options, b, now))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s batch: %v", b.SECCode, err)
	}
	for i := range b.Entries {
		ed, err := createDebitEntry(b.SECCode, b.Entries[i])
		if err != nil {
			return nil, fmt.Errorf("entry %s: %v", b.Entries[i].ID, err)
		}
		batch.AddEntry(ed)
	}
	if options.BalanceEntries {
		offset, err := createOffsetEntry(options, b)
		if err != nil {
			return nil, fmt.Errorf("problem balancing batch %d: %v", b.Number, err)
		}
		batch.AddEntry(offset)
	}

	batch.SetControl(ach.NewBatchControl())

	if err := batch.Create(); err != nil {
		return batch, err
	}
	return batch, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
