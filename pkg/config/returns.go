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

// Returns configures how bank return and notification of change records are handled.
type Returns struct {
	AutoApplyNOC         bool
	AutoRetrySoftReturns bool

	// SoftReturnCodes are retryable return reason codes.
	SoftReturnCodes []string

	MaxRetryAttempts int
	RetryDelayDays   int

	PollInterval time.Duration

	// Email and SlackWebhookURL receive alerts for hard returns.
	Email           []string
	SlackWebhookURL string
}

// DefaultSoftReturnCodes are insufficient and uncollected funds.
var DefaultSoftReturnCodes = []string{"R01", "R09"}

func defaultReturns() Returns {
	return Returns{
		AutoApplyNOC:         true,
		AutoRetrySoftReturns: true,
		MaxRetryAttempts:     2,
		RetryDelayDays:       3,
		PollInterval:         15 * time.Minute,
	}
}

// Soft returns true when code is configured as a retryable return.
func (cfg Returns) Soft(code string) bool {
	for i := range cfg.SoftReturnCodes {
		if strings.EqualFold(cfg.SoftReturnCodes[i], code) {
			return true
		}
	}
	return false
}

func (cfg Returns) Validate() error {
	if cfg.MaxRetryAttempts < 0 {
		return errors.New("negative max retry attempts")
	}
	if cfg.RetryDelayDays < 0 {
		return errors.New("negative retry delay days")
	}
	if cfg.PollInterval < 0 {
		return errors.New("negative poll interval")
	}
	for i := range cfg.SoftReturnCodes {
		if c := cfg.SoftReturnCodes[i]; len(c) != 3 || !strings.HasPrefix(strings.ToUpper(c), "R") {
			return fmt.Errorf("invalid soft return code %q", c)
		}
	}
	return nil
}
