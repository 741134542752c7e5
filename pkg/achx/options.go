// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
)

// Options are the originator settings shared by every batch in a file.
type Options struct {
	ODFIRoutingNumber     string
	CompanyName           string
	CompanyIdentification string

	Gateway config.Gateway

	// BalanceEntries adds an offsetting credit to Settlement for each batch.
	BalanceEntries bool
	Settlement     *config.SettlementAccount

	Location *time.Location
}

// NewOptions collects Options from ODFI and ACH configs.
func NewOptions(odfi config.ODFI, cfg config.ACH) (Options, error) {
	loc, err := cfg.Cutoff.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		ODFIRoutingNumber:     odfi.RoutingNumber,
		CompanyName:           odfi.CompanyName,
		CompanyIdentification: odfi.CompanyIdentification,
		Gateway:               odfi.Gateway,
		BalanceEntries:        cfg.BalancedFiles,
		Settlement:            odfi.Settlement,
		Location:              loc,
	}, nil
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}
