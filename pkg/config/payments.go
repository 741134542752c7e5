// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"
)

var (
	DefaultReceiptTemplate = template.Must(template.New("receipt").Parse(`Thank you for your payment to {{ .CompanyName }}.

Amount:      {{ .Total }}
Method:      {{ .Method }} ending in {{ .LastFour }}
Description: {{ .Description }}
Reference:   {{ .TransactionID }}
`))
)

type Payments struct {
	CardGateway CardGateway
	Receipts    *Receipts
}

// CardGateway is the processor card charges are sent to.
type CardGateway struct {
	Endpoint string
	APIKey   string `json:"-"`
	Timeout  time.Duration
}

func (cfg CardGateway) GetAPIKey() string {
	return util.Or(os.Getenv("CARD_GATEWAY_API_KEY"), cfg.APIKey)
}

func (cfg Payments) Validate() error {
	if cfg.CardGateway.Timeout < 0 {
		return errors.New("negative card gateway timeout")
	}
	if cfg.Receipts != nil {
		if cfg.Receipts.From == "" {
			return errors.New("receipts: missing from address")
		}
		if cfg.Receipts.Template != "" {
			if _, err := template.New("custom-receipt").Parse(cfg.Receipts.Template); err != nil {
				return fmt.Errorf("receipts: template: %v", err)
			}
		}
	}
	return nil
}

type Receipts struct {
	From        string
	Subject     string
	CompanyName string
	Template    string
}

func (cfg *Receipts) Tmpl() *template.Template {
	if cfg == nil || cfg.Template == "" {
		return DefaultReceiptTemplate
	}
	return template.Must(template.New("custom-receipt").Parse(cfg.Template))
}
