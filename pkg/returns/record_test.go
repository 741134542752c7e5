// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"

	"github.com/moov-io/ach"
	"github.com/stretchr/testify/require"
)

func TestFromFAR(t *testing.T) {
	records := FromFAR([]kotapay.ReturnItem{
		{TraceNumber: " 987654320000001 ", Code: "r01", Amount: 12.5, EffectiveDate: "2020-10-14"},
		{TraceNumber: "987654320000002", Code: "C01", CorrectedData: "1918171614"},
	})
	require.Len(t, records, 2)

	require.Equal(t, "987654320000001", records[0].TraceNumber)
	require.Equal(t, "R01", records[0].Code)
	require.Equal(t, int64(1250), records[0].Amount)
	require.Equal(t, "2020-10-14", records[0].EffectiveDate.Format("2006-01-02"))
	require.Equal(t, "far", records[0].Source)

	require.Equal(t, "1918171614", records[1].CorrectedData)
	require.True(t, records[1].EffectiveDate.IsZero())
}

func TestFromFile(t *testing.T) {
	bh := ach.NewBatchHeader()
	bh.StandardEntryClassCode = ach.PPD
	bh.EffectiveEntryDate = "201014"

	returned := ach.NewBatchPPD(bh)
	ed := ach.NewEntryDetail()
	ed.Amount = 1250
	ed.TraceNumber = "231380100000009"
	ed.Addenda99 = ach.NewAddenda99()
	ed.Addenda99.ReturnCode = "R01"
	ed.Addenda99.OriginalTrace = "987654320000001"
	returned.AddEntry(ed)
	returned.AddEntry(ach.NewEntryDetail()) // no addenda

	corrected := ach.NewBatchPPD(bh)
	cor := ach.NewEntryDetail()
	cor.TraceNumber = "231380100000010"
	cor.Addenda98 = ach.NewAddenda98()
	cor.Addenda98.ChangeCode = "C01"
	cor.Addenda98.OriginalTrace = "987654320000002"
	cor.Addenda98.CorrectedData = "1918171614"
	corrected.AddEntry(cor)

	file := ach.NewFile()
	file.ReturnEntries = []ach.Batcher{returned}
	file.NotificationOfChange = []ach.Batcher{corrected}

	records := FromFile("returns.ach", file)
	require.Len(t, records, 2)

	require.Equal(t, Record{
		TraceNumber:   "987654320000001",
		Code:          "R01",
		Amount:        1250,
		EffectiveDate: records[0].EffectiveDate,
		Source:        "returns.ach",
	}, records[0])
	require.Equal(t, "2020-10-14", records[0].EffectiveDate.Format("2006-01-02"))

	require.Equal(t, "987654320000002", records[1].TraceNumber)
	require.Equal(t, "C01", records[1].Code)
	require.Equal(t, "1918171614", records[1].CorrectedData)

	require.Empty(t, FromFile("nil.ach", nil))
}
