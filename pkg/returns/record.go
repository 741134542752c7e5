// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"strings"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"

	"github.com/moov-io/ach"
)

// Record is one return or notification of change for an entry we originated.
type Record struct {
	// TraceNumber is the trace number of the original entry
	TraceNumber   string
	Code          string
	CorrectedData string

	Amount        int64 // cents
	EffectiveDate time.Time

	// Source is "far" or the name of the file the record was read from
	Source string
}

// FromFAR converts the returns listed in a File Acknowledgement Report.
func FromFAR(items []kotapay.ReturnItem) []Record {
	var out []Record
	for i := range items {
		rec := Record{
			TraceNumber:   strings.TrimSpace(items[i].TraceNumber),
			Code:          strings.ToUpper(strings.TrimSpace(items[i].Code)),
			CorrectedData: items[i].CorrectedData,
			Source:        "far",
		}
		if items[i].Amount > 0 {
			rec.Amount, _ = money.ToCents(items[i].Amount)
		}
		if items[i].EffectiveDate != "" {
			rec.EffectiveDate, _ = time.Parse("2006-01-02", items[i].EffectiveDate)
		}
		out = append(out, rec)
	}
	return out
}

// FromFile reads the returned and corrected entries of a NACHA return file.
func FromFile(filename string, file *ach.File) []Record {
	if file == nil {
		return nil
	}
	var out []Record
	for i := range file.ReturnEntries {
		effective, _ := time.Parse("060102", file.ReturnEntries[i].GetHeader().EffectiveEntryDate)
		entries := file.ReturnEntries[i].GetEntries()
		for j := range entries {
			add := entries[j].Addenda99
			if add == nil {
				continue
			}
			out = append(out, Record{
				TraceNumber:   firstNonEmpty(add.OriginalTrace, entries[j].TraceNumber),
				Code:          strings.ToUpper(add.ReturnCode),
				Amount:        int64(entries[j].Amount),
				EffectiveDate: effective,
				Source:        filename,
			})
		}
	}
	for i := range file.NotificationOfChange {
		effective, _ := time.Parse("060102", file.NotificationOfChange[i].GetHeader().EffectiveEntryDate)
		entries := file.NotificationOfChange[i].GetEntries()
		for j := range entries {
			add := entries[j].Addenda98
			if add == nil {
				continue
			}
			out = append(out, Record{
				TraceNumber:   firstNonEmpty(add.OriginalTrace, entries[j].TraceNumber),
				Code:          strings.ToUpper(add.ChangeCode),
				CorrectedData: add.CorrectedData,
				EffectiveDate: effective,
				Source:        filename,
			})
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for i := range values {
		if v := strings.TrimSpace(values[i]); v != "" {
			return v
		}
	}
	return ""
}
