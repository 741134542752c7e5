// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/moov-io/base"
	"github.com/robfig/cron/v3"
)

// CutoffTimes calls a func on banking days at each cutoff time to trigger processing
// events (like the end-of-day ACH cycle).
type CutoffTimes struct {
	location *time.Location
	run      func(time.Time)

	sched *cron.Cron
}

// ForCutoff schedules run at the configured ACH cutoff.
func ForCutoff(cfg config.Cutoff, run func(time.Time)) (*CutoffTimes, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return ForCutoffTimes(location, []string{cfg.Time}, run)
}

func ForCutoffTimes(location *time.Location, timestamps []string, run func(time.Time)) (*CutoffTimes, error) {
	if location == nil {
		location = time.UTC
	}
	if run == nil {
		return nil, errors.New("missing cutoff func")
	}
	ct := &CutoffTimes{
		location: location,
		run:      run,
		sched:    cron.New(cron.WithLocation(location)),
	}
	if err := ct.registerCutoffs(timestamps); err != nil {
		return nil, err
	}
	ct.sched.Start()
	return ct, nil
}

// Stop waits for a running cutoff to finish.
func (ct *CutoffTimes) Stop() {
	if ct == nil || ct.sched == nil {
		return
	}
	<-ct.sched.Stop().Done()
}

// maybeRun calls run on banking days, judged by the calendar date in the cutoff's timezone.
func (ct *CutoffTimes) maybeRun(when time.Time) bool {
	local := when.In(ct.location)

	// base.Time works in UTC, so check the local date at noon
	day := base.NewTime(time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, time.UTC))
	if day.IsWeekend() || !day.IsBankingDay() {
		return false
	}
	ct.run(local)
	return true
}

func (ct *CutoffTimes) registerCutoffs(timestamps []string) error {
	if len(timestamps) == 0 {
		return errors.New("missing cutoff times")
	}
	for i := range timestamps {
		if err := ct.register(timestamps[i]); err != nil {
			return fmt.Errorf("timestamp=%s error=%v", timestamps[i], err)
		}
	}
	return nil
}

func (ct *CutoffTimes) register(timestamp string) error {
	when, err := time.Parse("15:04", timestamp)
	if err != nil {
		return fmt.Errorf("failed to parse '%s' error=%v", timestamp, err)
	}
	schedule := fmt.Sprintf(`%d %d * * 1-5`, when.Minute(), when.Hour())
	_, err = ct.sched.AddFunc(schedule, func() {
		ct.maybeRun(time.Now())
	})
	return err
}
