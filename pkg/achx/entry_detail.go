// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/ach"
)

func determineTransactionCode(accountType string, credit bool) (int, error) {
	switch strings.ToLower(accountType) {
	case "checking", "":
		if credit {
			return ach.CheckingCredit, nil
		}
		return ach.CheckingDebit, nil
	case "savings":
		if credit {
			return ach.SavingsCredit, nil
		}
		return ach.SavingsDebit, nil
	}
	return 0, fmt.Errorf("unknown account type %q", accountType)
}

// paymentTypeCode fills DiscretionaryData for SEC codes which carry one.
func paymentTypeCode(secCode string) string {
	switch strings.ToUpper(secCode) {
	case ach.WEB, ach.TEL:
		return "S" // single entry
	}
	return ""
}

func createDebitEntry(secCode string, e Entry) (*ach.EntryDetail, error) {
	if e.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if e.TraceNumber == "" {
		return nil, errors.New("missing trace number")
	}
	code, err := determineTransactionCode(e.AccountType, false)
	if err != nil {
		return nil, err
	}

	ed := ach.NewEntryDetail()
	ed.ID = e.ID
	ed.TransactionCode = code
	ed.RDFIIdentification = ABA8(e.RoutingNumber)
	ed.CheckDigit = ABACheckDigit(e.RoutingNumber)
	ed.DFIAccountNumber = e.AccountNumber
	ed.Amount = int(e.Amount)
	ed.IdentificationNumber = truncate(e.Identification, 15)
	ed.IndividualName = truncate(e.IndividualName, 22)
	ed.DiscretionaryData = paymentTypeCode(secCode)
	ed.TraceNumber = e.TraceNumber
	ed.Category = ach.CategoryForward
	return ed, nil
}

// createOffsetEntry credits the settlement account with the batch's debit total.
func createOffsetEntry(options Options, b Batch) (*ach.EntryDetail, error) {
	s := options.Settlement
	if s == nil || s.RoutingNumber == "" || s.AccountNumber == "" {
		return nil, errors.New("missing settlement account")
	}
	if b.OffsetTraceNumber == "" {
		return nil, errors.New("missing offset trace number")
	}
	code, err := determineTransactionCode(s.AccountType, true)
	if err != nil {
		return nil, err
	}

	ed := ach.NewEntryDetail()
	ed.ID = b.ID
	ed.TransactionCode = code
	ed.RDFIIdentification = ABA8(s.RoutingNumber)
	ed.CheckDigit = ABACheckDigit(s.RoutingNumber)
	ed.DFIAccountNumber = s.AccountNumber
	ed.Amount = int(b.DebitTotal())
	ed.IdentificationNumber = "OFFSET"
	ed.IndividualName = truncate(options.CompanyName, 22)
	ed.DiscretionaryData = paymentTypeCode(b.SECCode)
	ed.TraceNumber = b.OffsetTraceNumber
	ed.Category = ach.CategoryForward
	return ed, nil
}
