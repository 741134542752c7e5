// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"

	"github.com/moov-io/base"
)

// SettleMatured marks submitted entries of accepted files as settled once SettlementDays
// banking days have passed their effective date without a return. It returns how many
// entries settled.
func (u *Uploader) SettleMatured(ctx context.Context, asOf time.Time) (int, error) {
	files, err := u.repo.listFiles(ctx, u.repo.db, FileAccepted, FileProcessing)
	if err != nil {
		return 0, err
	}
	var el base.ErrorList
	total := 0
	for _, f := range files {
		n, err := u.settleFile(ctx, f, calendarDate(asOf))
		if err != nil {
			el.Add(fmt.Errorf("file %s: %v", f.ID, err))
			continue
		}
		if n > 0 {
			entriesSettled.Add(float64(n))
			u.logger.Log("settlement", fmt.Sprintf("settled %d entries", n), "fileID", f.ID)
			u.publish(ctx, events.New(events.EntriesSettled, f.ID, map[string]string{"entries": strconv.Itoa(n)}))
		}
		total += n
	}
	if el.Empty() {
		return total, nil
	}
	return total, el
}

func (u *Uploader) settleFile(ctx context.Context, f *File, asOf time.Time) (int, error) {
	settled := 0
	err := u.repo.tx(ctx, func(tx *sql.Tx) error {
		batches, err := u.repo.fileBatches(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		anySettled, allSettled := false, len(batches) > 0
		for _, b := range batches {
			entries, err := u.repo.listEntries(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			terminal := true
			for _, e := range entries {
				matured := !AddBankingDays(e.EffectiveDate, u.achCfg.SettlementDays).After(asOf)
				if e.Status == EntrySubmitted && matured {
					if err := u.repo.setEntryStatus(ctx, tx, e, EntrySettled); err != nil {
						return err
					}
					settled++
				}
				if e.Status == EntrySettled {
					anySettled = true
				}
				if !e.Status.Terminal() {
					terminal = false
				}
			}
			if terminal && b.Status == BatchAccepted {
				if err := u.repo.setBatchStatus(ctx, tx, b.ID, b.Status, BatchSettled); err != nil {
					return err
				}
				b.Status = BatchSettled
			}
			if b.Status != BatchSettled {
				allSettled = false
			}
		}

		current := *f
		if anySettled && current.Status == FileAccepted {
			if err := u.repo.setFileStatus(ctx, tx, &current, FileProcessing, ""); err != nil {
				return err
			}
			current.Status = FileProcessing
		}
		if allSettled {
			return u.repo.setFileStatus(ctx, tx, &current, FileCompleted, "")
		}
		return nil
	})
	return settled, err
}
