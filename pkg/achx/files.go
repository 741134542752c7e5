// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/moov-io/ach"
)

// ConstructFile builds and validates a NACHA file holding every batch in order.
func ConstructFile(id string, options Options, batches []Batch, modifier string, now time.Time) (*ach.File, error) {
	if len(batches) == 0 {
		return nil, errors.New("no batches")
	}

	file := ach.NewFile()
	file.ID = id
	file.Control = ach.NewFileControl()

	// File Header
	file.Header.ID = id

	// Set origin / destination from Gateway or from routing numbers
	file.Header.ImmediateOrigin = options.ODFIRoutingNumber
	if options.Gateway.Origin != "" {
		file.Header.ImmediateOrigin = options.Gateway.Origin
	}
	file.Header.ImmediateDestination = options.ODFIRoutingNumber
	if options.Gateway.Destination != "" {
		file.Header.ImmediateDestination = options.Gateway.Destination
	}

	// Set other header fields
	file.Header.ImmediateOriginName = truncate(options.Gateway.OriginName, 23)
	file.Header.ImmediateDestinationName = truncate(options.Gateway.DestinationName, 23)

	// Set file date/time from current time
	local := now.In(options.location())
	file.Header.FileCreationDate = local.Format("060102") // YYMMDD
	file.Header.FileCreationTime = local.Format("1504")   // HHMM
	file.Header.FileIDModifier = modifier

	for i := range batches {
		batch, err := createBatch(options, batches[i], now)
		if err != nil {
			return nil, fmt.Errorf("constructFile: batch %d: %v", batches[i].Number, err)
		}
		file.AddBatch(batch)
	}

	if err := file.Create(); err != nil {
		return file, err
	}
	return file, file.Validate()
}

// FileIDModifier returns the modifier for the n'th (zero indexed) file created on one day.
func FileIDModifier(n int) (string, error) {
	if n < 0 || n > 35 {
		return "", fmt.Errorf("file id modifier #%d is out of range", n)
	}
	const modifiers = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	return string(modifiers[n]), nil
}

// Render writes the NACHA formatted file.
func Render(file *ach.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := ach.NewWriter(&buf).Write(file); err != nil {
		return nil, fmt.Errorf("render: %v", err)
	}
	return buf.Bytes(), nil
}

// Totals are file control values computed from Batches without the ach library.
type Totals struct {
	BatchCount        int
	EntryAddendaCount int
	EntryHash         int64
	TotalDebit        int64
	TotalCredit       int64
}

// ComputeTotals recomputes the file control totals of batches including any offset entries.
func ComputeTotals(options Options, batches []Batch) (Totals, error) {
	var t Totals
	t.BatchCount = len(batches)
	for i := range batches {
		b := batches[i]
		for j := range b.Entries {
			n, err := strconv.ParseInt(ABA8(b.Entries[j].RoutingNumber), 10, 64)
			if err != nil {
				return t, fmt.Errorf("entry %s routing number: %v", b.Entries[j].ID, err)
			}
			t.EntryHash += n
			t.EntryAddendaCount++
			t.TotalDebit += b.Entries[j].Amount
		}
		if options.BalanceEntries && options.Settlement != nil {
			n, err := strconv.ParseInt(ABA8(options.Settlement.RoutingNumber), 10, 64)
			if err != nil {
				return t, fmt.Errorf("settlement routing number: %v", err)
			}
			t.EntryHash += n
			t.EntryAddendaCount++
			t.TotalCredit += b.DebitTotal()
		}
	}
	t.EntryHash = t.EntryHash % 10000000000
	return t, nil
}

// Match compares totals against a built file's control record.
func (t Totals) Match(file *ach.File) error {
	if file == nil {
		return errors.New("nil file")
	}
	fc := file.Control
	switch {
	case fc.BatchCount != t.BatchCount:
		return fmt.Errorf("batch count %d, expected %d", fc.BatchCount, t.BatchCount)
	case fc.EntryAddendaCount != t.EntryAddendaCount:
		return fmt.Errorf("entry/addenda count %d, expected %d", fc.EntryAddendaCount, t.EntryAddendaCount)
	case int64(fc.EntryHash)%10000000000 != t.EntryHash:
		return fmt.Errorf("entry hash %d, expected %d", fc.EntryHash, t.EntryHash)
	case int64(fc.TotalDebitEntryDollarAmountInFile) != t.TotalDebit:
		return fmt.Errorf("total debit %d, expected %d", fc.TotalDebitEntryDollarAmountInFile, t.TotalDebit)
	case int64(fc.TotalCreditEntryDollarAmountInFile) != t.TotalCredit:
		return fmt.Errorf("total credit %d, expected %d", fc.TotalCreditEntryDollarAmountInFile, t.TotalCredit)
	}
	return nil
}
