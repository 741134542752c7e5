// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"context"
	"net/url"
)

// Payment is a single ACH debit submitted directly over the API.
type Payment struct {
	ApplicationID string `json:"applicationId"`
	ExternalID    string `json:"externalId"`

	AccountName   string `json:"accountName"`
	RoutingNumber string `json:"routingNumber"`
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"` // checking or savings

	// HolderType is personal or business and selects the application id
	HolderType string `json:"-"`

	Amount        float64 `json:"amount"`
	EffectiveDate string  `json:"effectiveDate"` // YYYY-MM-DD
	SECCode       string  `json:"secCode"`
	Description   string  `json:"description,omitempty"`
}

type RecurringPayment struct {
	Payment

	Frequency   string `json:"frequency"` // weekly, biweekly or monthly
	StartDate   string `json:"startDate"`
	Occurrences int    `json:"occurrences"`
}

type PaymentResponse struct {
	PaymentID     string  `json:"paymentId"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	EffectiveDate string  `json:"effectiveDate"`
	TraceNumber   string  `json:"traceNumber,omitempty"`
	ReturnCode    string  `json:"returnCode,omitempty"`
	Message       string  `json:"message,omitempty"`
}

func (c *HTTPClient) fillApplicationID(p *Payment) error {
	if p.ApplicationID != "" {
		return nil
	}
	id, err := c.applicationID(p.HolderType)
	if err != nil {
		return err
	}
	p.ApplicationID = id
	return nil
}

func (c *HTTPClient) CreatePayment(ctx context.Context, p Payment) (*PaymentResponse, error) {
	if err := c.fillApplicationID(&p); err != nil {
		return nil, err
	}
	req, err := jsonRequest("create-payment", "POST", c.companyPath("payment"), p)
	if err != nil {
		return nil, err
	}
	var resp PaymentResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateRecurringPayment(ctx context.Context, p RecurringPayment) (*PaymentResponse, error) {
	if err := c.fillApplicationID(&p.Payment); err != nil {
		return nil, err
	}
	req, err := jsonRequest("create-recurring-payment", "POST", c.companyPath("payment", "recurring"), p)
	if err != nil {
		return nil, err
	}
	var resp PaymentResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetPayment(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	req, err := jsonRequest("get-payment", "GET", c.companyPath("payment", url.PathEscape(paymentID)), nil)
	if err != nil {
		return nil, err
	}
	var resp PaymentResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) VoidPayment(ctx context.Context, paymentID string) error {
	req, err := jsonRequest("void-payment", "DELETE", c.companyPath("payment", "void", url.PathEscape(paymentID)), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}
