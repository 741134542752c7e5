// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"context"
	"sync"
)

type MockClient struct {
	Payment   *PaymentResponse
	Upload    *FileUploadResponse
	Report    *FAR
	Err       error
	UploadErr error

	mu       sync.Mutex
	Payments []Payment
	Uploads  []FileUpload
	Voided   []string
}

func (c *MockClient) CreatePayment(_ context.Context, p Payment) (*PaymentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Payments = append(c.Payments, p)
	return c.Payment, c.Err
}

func (c *MockClient) CreateRecurringPayment(_ context.Context, p RecurringPayment) (*PaymentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Payments = append(c.Payments, p.Payment)
	return c.Payment, c.Err
}

func (c *MockClient) GetPayment(_ context.Context, _ string) (*PaymentResponse, error) {
	return c.Payment, c.Err
}

func (c *MockClient) VoidPayment(_ context.Context, paymentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Voided = append(c.Voided, paymentID)
	return c.Err
}

func (c *MockClient) UploadFile(_ context.Context, f FileUpload) (*FileUploadResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.UploadErr != nil {
		return nil, c.UploadErr
	}
	c.Uploads = append(c.Uploads, f)
	if c.Upload != nil {
		return c.Upload, nil
	}
	return &FileUploadResponse{Reference: "ref-" + f.FileID, Status: "received"}, nil
}

func (c *MockClient) FileAcknowledgementReport(_ context.Context, _ FARRequest) (*FAR, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Report == nil {
		return &FAR{}, nil
	}
	return c.Report, nil
}

func (c *MockClient) Hostname() string {
	return "sandbox-api.kotapay.com"
}

func (c *MockClient) Ping(_ context.Context) error {
	return c.Err
}
