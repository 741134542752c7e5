// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"net/url"
	"strconv"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"

	"github.com/moov-io/ach"
	"github.com/ory/mail/v3"
)

type Email struct {
	cfg    *config.Email
	dialer *mail.Dialer
}

type EmailTemplateData struct {
	CompanyName string // e.g. FoleyBridge
	Verb        string // e.g. upload, download
	Filename    string // e.g. FB20201014-A.ach

	DebitTotal  float64
	CreditTotal float64

	BatchCount int
	EntryCount int
}

var (
	// Ensure the default template validates against our data struct
	_ = config.DefaultEmailTemplate.Execute(ioutil.Discard, EmailTemplateData{})
)

func NewEmail(cfg *config.Email) (*Email, error) {
	if cfg == nil {
		return nil, errors.New("email: nil config")
	}
	dialer, err := setupDialer(cfg.ConnectionURI)
	if err != nil {
		return nil, err
	}
	return &Email{
		cfg:    cfg,
		dialer: dialer,
	}, nil
}

func setupDialer(raw string) (*mail.Dialer, error) {
	uri, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("email: bad connection uri: %v", err)
	}
	port, err := strconv.Atoi(uri.Port())
	if err != nil {
		return nil, fmt.Errorf("email: bad port %q: %v", uri.Port(), err)
	}
	pass, _ := uri.User.Password()
	dialer := mail.NewDialer(uri.Hostname(), port, uri.User.Username(), pass)
	dialer.Timeout = 30 * time.Second
	dialer.SSL = uri.Scheme == "smtps"
	dialer.TLSConfig = &tls.Config{
		ServerName:         uri.Hostname(),
		InsecureSkipVerify: uri.Query().Get("insecure_skip_verify") == "true",
	}
	return dialer, nil
}

func (mailer *Email) Info(msg *Message) error {
	return mailer.send(msg, false)
}

func (mailer *Email) Critical(msg *Message) error {
	return mailer.send(msg, true)
}

func (mailer *Email) send(msg *Message, critical bool) error {
	contents, err := marshalEmail(mailer.cfg, msg)
	if err != nil {
		return err
	}
	subject := msg.String()
	if critical {
		subject = "[CRITICAL] " + subject
	}

	m := mail.NewMessage()
	m.SetHeader("From", mailer.cfg.From)
	m.SetHeader("To", mailer.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", contents)

	ctx, cancel := context.WithTimeout(context.Background(), mailer.dialer.Timeout)
	defer cancel()

	if err := mailer.dialer.DialAndSend(ctx, m); err != nil {
		return fmt.Errorf("email: %v", err)
	}
	return nil
}

// marshalEmail renders file messages through the configured template
// and falls back to the message body for everything else.
func marshalEmail(cfg *config.Email, msg *Message) (string, error) {
	if msg.File == nil {
		return msg.Body, nil
	}
	data := EmailTemplateData{
		CompanyName: cfg.CompanyName,
		Verb:        verb(msg.Topic),
		Filename:    msg.Filename,
		DebitTotal:  money.ToDollars(int64(msg.File.Control.TotalDebitEntryDollarAmountInFile)),
		CreditTotal: money.ToDollars(int64(msg.File.Control.TotalCreditEntryDollarAmountInFile)),
		BatchCount:  msg.File.Control.BatchCount,
		EntryCount:  countEntries(msg.File),
	}

	var buf bytes.Buffer
	if err := cfg.Tmpl().Execute(&buf, data); err != nil {
		return "", err
	}
	if msg.Body != "" {
		buf.WriteString("\n" + msg.Body + "\n")
	}
	return buf.String(), nil
}

func verb(topic Topic) string {
	switch topic {
	case Upload:
		return "uploaded"
	case Download:
		return "downloaded"
	}
	return string(topic)
}

func countEntries(file *ach.File) int {
	var total int
	for i := range file.Batches {
		total += len(file.Batches[i].GetEntries())
	}
	return total
}
