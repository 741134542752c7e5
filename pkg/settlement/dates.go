// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/moov-io/base"
)

// EffectiveDate returns the effective entry date for an entry created at now. Entries
// created at or after the daily cutoff settle one banking day later.
func EffectiveDate(cfg config.ACH, now time.Time, delayDays int) (time.Time, error) {
	loc, err := cfg.Cutoff.Location()
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := cfg.Cutoff.HourMinute()
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	days := cfg.EffectiveDateOffset + delayDays
	if cutoff := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc); !local.Before(cutoff) {
		days++
	}
	return AddBankingDays(calendarDate(local), days), nil
}

// AddBankingDays moves day forward n banking days. The result is always a banking day.
func AddBankingDays(day time.Time, n int) time.Time {
	// noon keeps the calendar math away from midnight
	t := base.NewTime(time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC))
	for i := 0; i < n; i++ {
		t = t.AddBankingDay(1)
	}
	if !t.IsBankingDay() {
		t = t.AddBankingDay(1)
	}
	return calendarDate(t.Time)
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
