// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"
)

const (
	SandboxBaseURL    = "https://sandbox-api.kotapay.com"
	ProductionBaseURL = "https://api.kotapay.com"
)

// Kotapay holds the settlement processor's API settings.
type Kotapay struct {
	Environment string // sandbox or production

	// BaseURL overrides the environment's address.
	BaseURL string

	ClientID     string
	ClientSecret string `json:"-"`
	Username     string
	Password     string `json:"-"`

	CompanyID      string
	ApplicationIDs ApplicationIDs

	Timeout time.Duration
	Retry   Retry
}

type ApplicationIDs struct {
	Personal string
	Business string
}

type Retry struct {
	Enabled     bool
	MaxAttempts int
	DelayMS     int
}

// Delay returns the pause between attempts.
func (r Retry) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// Attempts returns how many times a request is tried in total.
func (r Retry) Attempts() int {
	if !r.Enabled || r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

func defaultKotapay() Kotapay {
	return Kotapay{
		Environment: "sandbox",
		Timeout:     30 * time.Second,
		Retry: Retry{
			Enabled:     true,
			MaxAttempts: 3,
			DelayMS:     1000,
		},
	}
}

func (cfg Kotapay) Address() string {
	if cfg.BaseURL != "" {
		return strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if strings.EqualFold(cfg.Environment, "production") {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (cfg Kotapay) GetClientSecret() string {
	return util.Or(os.Getenv("KOTAPAY_CLIENT_SECRET"), cfg.ClientSecret)
}

func (cfg Kotapay) GetPassword() string {
	return util.Or(os.Getenv("KOTAPAY_PASSWORD"), cfg.Password)
}

func (cfg Kotapay) Validate() error {
	switch strings.ToLower(cfg.Environment) {
	case "sandbox", "production":
	default:
		return fmt.Errorf("unknown environment %q", cfg.Environment)
	}
	if cfg.Timeout < 0 {
		return errors.New("negative timeout")
	}
	if cfg.Retry.MaxAttempts < 0 || cfg.Retry.DelayMS < 0 {
		return errors.New("retry: negative max attempts or delay")
	}
	return nil
}
