// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/ory/mail/v3"
)

// Receipt is the data rendered into a customer payment receipt.
type Receipt struct {
	To            string
	CompanyName   string
	Total         string
	Method        string
	LastFour      string
	Description   string
	TransactionID string
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

type receiptMailer struct {
	cfg    *config.Receipts
	dialer *mail.Dialer
}

// NewReceiptSender returns a ReceiptSender delivering over the SMTP server in
// connectionURI. A nil Receipts config disables receipts.
func NewReceiptSender(cfg *config.Receipts, connectionURI string) (ReceiptSender, error) {
	if cfg == nil {
		return &noopReceipts{}, nil
	}
	if cfg.From == "" {
		return nil, errors.New("receipts: missing from address")
	}
	dialer, err := setupDialer(connectionURI)
	if err != nil {
		return nil, err
	}
	return &receiptMailer{cfg: cfg, dialer: dialer}, nil
}

func (rm *receiptMailer) SendReceipt(ctx context.Context, r Receipt) error {
	if r.To == "" {
		return nil
	}
	if r.CompanyName == "" {
		r.CompanyName = rm.cfg.CompanyName
	}
	body, err := marshalReceipt(rm.cfg, r)
	if err != nil {
		return err
	}
	subject := rm.cfg.Subject
	if subject == "" {
		subject = fmt.Sprintf("Payment receipt %s", r.TransactionID)
	}

	m := mail.NewMessage()
	m.SetHeader("From", rm.cfg.From)
	m.SetHeader("To", r.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := rm.dialer.DialAndSend(ctx, m); err != nil {
		return fmt.Errorf("receipts: %v", err)
	}
	return nil
}

func marshalReceipt(cfg *config.Receipts, r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := cfg.Tmpl().Execute(&buf, r); err != nil {
		return "", fmt.Errorf("receipts: template: %v", err)
	}
	return buf.String(), nil
}

type noopReceipts struct{}

func (*noopReceipts) SendReceipt(_ context.Context, _ Receipt) error {
	return nil
}

type MockReceipts struct {
	Err  error
	Sent []Receipt
}

func (m *MockReceipts) SendReceipt(_ context.Context, r Receipt) error {
	m.Sent = append(m.Sent, r)
	return m.Err
}
