// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"strings"
)

// ODFI describes the originating bank and the company whose debits are batched.
type ODFI struct {
	RoutingNumber string
	Gateway       Gateway

	CompanyName           string
	CompanyIdentification string

	// Settlement is the account receiving the offsetting credit of each batch
	// when balanced files are enabled.
	Settlement *SettlementAccount
}

type Gateway struct {
	Origin          string
	OriginName      string
	Destination     string
	DestinationName string
}

type SettlementAccount struct {
	RoutingNumber string
	AccountNumber string `json:"-"`
	AccountType   string
}

func (cfg ODFI) Validate() error {
	if cfg.RoutingNumber == "" {
		return nil
	}
	if err := checkRoutingNumber(cfg.RoutingNumber); err != nil {
		return err
	}
	if cfg.CompanyIdentification == "" {
		return errors.New("missing company identification")
	}
	if s := cfg.Settlement; s != nil {
		if err := checkRoutingNumber(s.RoutingNumber); err != nil {
			return fmt.Errorf("settlement: %v", err)
		}
		if s.AccountNumber == "" {
			return errors.New("settlement: missing account number")
		}
		switch strings.ToLower(s.AccountType) {
		case "", "checking", "savings":
		default:
			return fmt.Errorf("settlement: unknown account type %q", s.AccountType)
		}
	}
	return nil
}

// checkRoutingNumber verifies the length and ABA check digit of a routing number.
func checkRoutingNumber(rtn string) error {
	if len(rtn) != 9 {
		return fmt.Errorf("routing number %q must be 9 digits", rtn)
	}
	weights := []int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	sum := 0
	for i := range rtn {
		if rtn[i] < '0' || rtn[i] > '9' {
			return fmt.Errorf("routing number %q has non-numeric characters", rtn)
		}
		sum += int(rtn[i]-'0') * weights[i]
	}
	if sum%10 != 0 {
		return fmt.Errorf("routing number %q has an invalid check digit", rtn)
	}
	return nil
}
