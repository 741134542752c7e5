// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"
)

// PracticeCS configures writes into the external accounting ledger.
type PracticeCS struct {
	Enabled bool

	DSN string `json:"-"`

	// Mode is sync (write during the payment) or async (queue and write later).
	Mode string

	// AutoPost creates posted ledger entries instead of pending ones awaiting approval.
	AutoPost bool

	StaffKey       int
	BankAccountKey int

	LedgerTypes map[string]LedgerType
	MemoTypes   MemoTypes

	// AcceptedEngagementType is the engagement type key an engagement moves to once
	// a payment accepts it. Zero leaves engagement types unchanged.
	AcceptedEngagementType int

	MaxQueueAttempts int
}

type LedgerType struct {
	Type    int
	Subtype int
}

type MemoTypes struct {
	Debit  int
	Credit int
}

func defaultPracticeCS() PracticeCS {
	return PracticeCS{
		Mode: "sync",
		LedgerTypes: map[string]LedgerType{
			"credit_card": {Type: 1, Subtype: 10},
			"ach":         {Type: 1, Subtype: 11},
			"check":       {Type: 1, Subtype: 12},
			"cash":        {Type: 1, Subtype: 13},
		},
		MemoTypes: MemoTypes{
			Debit:  3,
			Credit: 4,
		},
		MaxQueueAttempts: 5,
	}
}

func (cfg PracticeCS) GetDSN() string {
	return util.Or(os.Getenv("PRACTICECS_DSN"), cfg.DSN)
}

// Async returns true when ledger writes are queued instead of written during a payment.
func (cfg PracticeCS) Async() bool {
	return strings.EqualFold(cfg.Mode, "async")
}

func (cfg PracticeCS) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	switch strings.ToLower(cfg.Mode) {
	case "sync", "async":
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.GetDSN() == "" {
		return errors.New("missing dsn")
	}
	for _, method := range []string{"credit_card", "ach", "check", "cash"} {
		if _, ok := cfg.LedgerTypes[method]; !ok {
			return fmt.Errorf("missing ledger type for %s", method)
		}
	}
	if cfg.AcceptedEngagementType < 0 {
		return errors.New("negative accepted engagement type")
	}
	if cfg.MaxQueueAttempts < 0 {
		return errors.New("negative max queue attempts")
	}
	return nil
}
