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

// Upload picks how NACHA files reach the processor.
type Upload struct {
	// Agent is kotapay (REST upload) or sftp
	Agent string

	SFTP *SFTP

	// AllowedIPs is a comma separated list of IP addresses and CIDR ranges
	// remote hosts must resolve into.
	AllowedIPs string

	MaxAttempts int
}

type SFTP struct {
	Hostname string
	Username string

	Password         string `json:"-"`
	ClientPrivateKey string `json:"-"`
	HostPublicKey    string

	DialTimeout time.Duration

	OutboundPath string
	ReturnPath   string

	// TestPath receives test mode uploads which the processor never acts on.
	TestPath string
}

func (cfg *SFTP) GetPassword() string {
	if cfg == nil {
		return ""
	}
	return util.Or(os.Getenv("SFTP_PASSWORD"), cfg.Password)
}

func (cfg *SFTP) Timeout() time.Duration {
	if cfg == nil || cfg.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.DialTimeout
}

func (cfg Upload) SplitAllowedIPs() []string {
	if cfg.AllowedIPs != "" {
		return strings.Split(cfg.AllowedIPs, ",")
	}
	return nil
}

// Attempts returns how many times a file is uploaded before it's left for manual review.
func (cfg Upload) Attempts() int {
	if cfg.MaxAttempts <= 0 {
		return 5
	}
	return cfg.MaxAttempts
}

func (cfg Upload) Validate() error {
	switch strings.ToLower(cfg.Agent) {
	case "", "kotapay":
		return nil
	case "sftp":
		if cfg.SFTP == nil || cfg.SFTP.Hostname == "" || cfg.SFTP.Username == "" {
			return errors.New("sftp: missing hostname or username")
		}
		if cfg.SFTP.GetPassword() == "" && cfg.SFTP.ClientPrivateKey == "" {
			return errors.New("sftp: missing password or client private key")
		}
		return nil
	}
	return fmt.Errorf("unknown agent %q", cfg.Agent)
}
