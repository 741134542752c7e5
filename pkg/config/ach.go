// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ACH controls how debit entries are accumulated into batches and files.
type ACH struct {
	DefaultSECCode  string
	AllowedSECCodes []string

	// BalancedFiles appends an offsetting credit to the ODFI settlement account
	// for every batch.
	BalancedFiles bool

	// EntryDescription is the company entry description on each batch header.
	// NACHA limits this to 10 characters.
	EntryDescription string

	// EffectiveDateOffset is the number of banking days after today an entry settles.
	EffectiveDateOffset int

	Cutoff Cutoff

	MaxEntriesPerBatch int
	MaxBatchesPerFile  int

	// SettlementDays is how many banking days after the effective date a
	// submitted entry without a return is considered settled.
	SettlementDays int

	FilenameTemplate string
}

type Cutoff struct {
	Timezone string
	Time     string // 24 hour HH:MM
}

// Location returns the cutoff timezone, defaulting to America/New_York.
func (c Cutoff) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	return time.LoadLocation(tz)
}

// HourMinute parses the cutoff time.
func (c Cutoff) HourMinute() (int, int, error) {
	t, err := time.Parse("15:04", c.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("cutoff %q: %v", c.Time, err)
	}
	return t.Hour(), t.Minute(), nil
}

func defaultACH() ACH {
	return ACH{
		DefaultSECCode:      "WEB",
		EntryDescription:    "PAYMENT",
		EffectiveDateOffset: 1,
		Cutoff: Cutoff{
			Timezone: "America/New_York",
			Time:     "16:00",
		},
		MaxEntriesPerBatch: 5000,
		MaxBatchesPerFile:  50,
		SettlementDays:     2,
	}
}

// DefaultAllowedSECCodes is used when no SEC codes are configured.
var DefaultAllowedSECCodes = []string{"WEB", "PPD", "CCD"}

var knownSECCodes = map[string]bool{
	"WEB": true,
	"PPD": true,
	"CCD": true,
	"TEL": true,
}

// Allowed returns true when code is in AllowedSECCodes.
func (cfg ACH) Allowed(code string) bool {
	for i := range cfg.AllowedSECCodes {
		if strings.EqualFold(cfg.AllowedSECCodes[i], code) {
			return true
		}
	}
	return false
}

func (cfg ACH) Validate() error {
	if len(cfg.AllowedSECCodes) == 0 {
		return errors.New("no allowed SEC codes")
	}
	for i := range cfg.AllowedSECCodes {
		code := strings.ToUpper(cfg.AllowedSECCodes[i])
		if !knownSECCodes[code] {
			return fmt.Errorf("unknown SEC code %q", cfg.AllowedSECCodes[i])
		}
		// TEL entries can only debit so a balanced file can't carry them.
		if code == "TEL" && cfg.BalancedFiles {
			return errors.New("TEL entries can not be used with balanced files")
		}
	}
	if !cfg.Allowed(cfg.DefaultSECCode) {
		return fmt.Errorf("default SEC code %q is not allowed", cfg.DefaultSECCode)
	}
	if n := len(cfg.EntryDescription); n == 0 || n > 10 {
		return fmt.Errorf("entry description %q must be 1-10 characters", cfg.EntryDescription)
	}
	if cfg.EffectiveDateOffset < 0 {
		return errors.New("negative effective date offset")
	}
	if _, err := cfg.Cutoff.Location(); err != nil {
		return fmt.Errorf("cutoff: %v", err)
	}
	if _, _, err := cfg.Cutoff.HourMinute(); err != nil {
		return err
	}
	if cfg.MaxEntriesPerBatch <= 0 || cfg.MaxBatchesPerFile <= 0 {
		return errors.New("max entries per batch and max batches per file must be positive")
	}
	if cfg.SettlementDays < 0 {
		return errors.New("negative settlement days")
	}
	return nil
}
