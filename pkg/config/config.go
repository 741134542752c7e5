// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/moov-io/base/http/bind"

	"github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Http  HTTP
	Admin Admin

	Database Database
	Secrets  Secrets

	ODFI       ODFI
	ACH        ACH
	Kotapay    Kotapay
	Upload     Upload
	Returns    Returns
	PracticeCS PracticeCS
	Payments   Payments
	Pipeline   Pipeline
}

type Logging struct {
	Format string
	Level  string
}

type HTTP struct {
	BindAddress string
}

type Admin struct {
	BindAddress           string
	DisableConfigEndpoint bool
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Admin: Admin{
			BindAddress: bind.Admin("trpay"),
		},
		Http: HTTP{
			BindAddress: bind.HTTP("trpay"),
		},
		Database: Database{
			// Set the default path inside this path if no other database is defined.
			SQLite: &SQLite{
				Path: "trpay.db",
			},
		},
		ACH:        defaultACH(),
		Kotapay:    defaultKotapay(),
		Upload:     Upload{Agent: "kotapay"},
		Returns:    defaultReturns(),
		PracticeCS: defaultPracticeCS(),
	}
}

func FromFile(path string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg = setupLogger(setDefaults(cfg))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg = setupLogger(setDefaults(cfg))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults fills list values after unmarshaling since decoding merges
// into any existing slice.
func setDefaults(cfg *Config) *Config {
	if len(cfg.ACH.AllowedSECCodes) == 0 {
		cfg.ACH.AllowedSECCodes = append([]string(nil), DefaultAllowedSECCodes...)
	}
	if cfg.Returns.SoftReturnCodes == nil {
		cfg.Returns.SoftReturnCodes = append([]string(nil), DefaultSoftReturnCodes...)
	}
	return cfg
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}

	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)

	return cfg
}

// Validate checks a Config fields and performs various confirmations
// their values conform to expectations.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("missing Config")
	}

	if err := cfg.ODFI.Validate(); err != nil {
		return fmt.Errorf("odfi: %v", err)
	}
	if err := cfg.ACH.Validate(); err != nil {
		return fmt.Errorf("ach: %v", err)
	}
	if err := cfg.Kotapay.Validate(); err != nil {
		return fmt.Errorf("kotapay: %v", err)
	}
	if err := cfg.Upload.Validate(); err != nil {
		return fmt.Errorf("upload: %v", err)
	}
	if err := cfg.Returns.Validate(); err != nil {
		return fmt.Errorf("returns: %v", err)
	}
	if err := cfg.PracticeCS.Validate(); err != nil {
		return fmt.Errorf("practicecs: %v", err)
	}
	if err := cfg.Payments.Validate(); err != nil {
		return fmt.Errorf("payments: %v", err)
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %v", err)
	}
	return nil
}
