// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("payments: not found")

	// ErrChargeInProgress is returned for a transaction id whose charge hasn't finished.
	ErrChargeInProgress = errors.New("payments: charge already in progress")
)

// Payment is a captured charge.
type Payment struct {
	ID                   string       `json:"paymentId"`
	TransactionID        string       `json:"transactionId"`
	GatewayTransactionID string       `json:"gatewayTransactionId,omitempty"`
	CustomerRef          string       `json:"customerRef"`
	ClientKey            int          `json:"clientKey,omitempty"`
	Amount               int64        `json:"amount"` // cents, without the fee
	Fee                  int64        `json:"fee"`
	Total                int64        `json:"total"`
	Method               string       `json:"method"`
	ChargeMethod         ChargeMethod `json:"chargeMethod"`
	LastFour             string       `json:"lastFour"`
	Description          string       `json:"description"`
	Invoices             []string     `json:"invoices,omitempty"`
	Source               Source       `json:"source"`
	CreatedAt            time.Time    `json:"createdAt"`
}

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
)

// Attempt records each transaction id we tried to charge.
type Attempt struct {
	TransactionID string
	Status        AttemptStatus
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Method is a saved payment method. Full account numbers are only stored encrypted.
type Method struct {
	ID          string `json:"id"`
	CustomerRef string `json:"customerRef"`
	Kind        string `json:"kind"` // card or ach
	Name        string `json:"name,omitempty"`
	LastFour    string `json:"lastFour"`

	RoutingNumberEncrypted string `json:"-"`
	AccountNumberEncrypted string `json:"-"`
	AccountType            string `json:"accountType,omitempty"`
	HolderType             string `json:"holderType,omitempty"`

	CardToken  string `json:"-"`
	Expiration string `json:"expiration,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Saved returns the SavedMethod used to pay with m.
func (m *Method) Saved() SavedMethod {
	return SavedMethod{
		ID:         m.ID,
		Kind:       m.Kind,
		LastFour:   m.LastFour,
		HolderType: m.HolderType,
	}
}

type EngagementAcceptance struct {
	Key           string
	TransactionID string
	NewTypeKey    string
	AcceptedAt    time.Time
}
