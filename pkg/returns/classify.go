// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
)

var ErrUnsupportedCorrection = errors.New("returns: unsupported change code")

// Classify returns how a return reason or change code is handled.
func Classify(cfg config.Returns, code string) settlement.ReturnKind {
	code = strings.ToUpper(strings.TrimSpace(code))
	if strings.HasPrefix(code, "C") {
		return settlement.KindCorrection
	}
	soft := cfg
	if len(soft.SoftReturnCodes) == 0 {
		soft.SoftReturnCodes = config.DefaultSoftReturnCodes
	}
	if soft.Soft(code) {
		return settlement.KindSoft
	}
	return settlement.KindHard
}

// ParseCorrection reads the corrected data of a notification of change. Fields can be
// separated by whitespace or laid out in their fixed Addenda98 positions.
func ParseCorrection(code, data string) (settlement.Correction, error) {
	var c settlement.Correction
	fields := strings.Fields(data)
	if len(fields) == 0 {
		return c, fmt.Errorf("%s: missing corrected data", code)
	}

	var err error
	switch strings.ToUpper(code) {
	case "C01":
		c.AccountNumber = fields[0]

	case "C02":
		c.RoutingNumber, err = routingNumber(fields[0])

	case "C03":
		if len(fields) < 2 {
			return c, fmt.Errorf("C03: expected routing and account number in %q", data)
		}
		c.RoutingNumber, err = routingNumber(fields[0])
		c.AccountNumber = fields[1]

	case "C05":
		c.TransactionCode, err = transactionCode(fields[0])

	case "C06":
		if len(fields) < 2 {
			return c, fmt.Errorf("C06: expected account number and transaction code in %q", data)
		}
		c.AccountNumber = fields[0]
		c.TransactionCode, err = transactionCode(fields[1])

	case "C07":
		if len(fields) >= 3 {
			c.RoutingNumber, err = routingNumber(fields[0])
			c.AccountNumber = fields[1]
			if err == nil {
				c.TransactionCode, err = transactionCode(fields[2])
			}
			break
		}
		// routing 1-9, account 10-26, transaction code 27-28
		if len(data) < 28 {
			return c, fmt.Errorf("C07: corrected data %q is too short", data)
		}
		c.RoutingNumber, err = routingNumber(data[0:9])
		c.AccountNumber = strings.TrimSpace(data[9:26])
		if err == nil {
			c.TransactionCode, err = transactionCode(data[26:28])
		}

	default:
		return c, fmt.Errorf("%w: %s", ErrUnsupportedCorrection, code)
	}
	if err != nil {
		return settlement.Correction{}, fmt.Errorf("%s: %v", code, err)
	}
	return c, nil
}

func routingNumber(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 9 {
		return "", fmt.Errorf("routing number %q must be 9 digits", s)
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", fmt.Errorf("routing number %q is not numeric", s)
	}
	return s, nil
}

func transactionCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 {
		s = s[:2]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 20 || n > 59 {
		return 0, fmt.Errorf("invalid transaction code %q", s)
	}
	return n, nil
}
