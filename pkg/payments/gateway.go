// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	trpay "github.com/FoleyBridge-Solutions/tr-pay-sub005"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
)

// CardCharge is a charge against raw card details or a stored card token.
type CardCharge struct {
	TransactionID string
	Amount        int64 // cents
	Description   string

	Card  *CardDetails
	Token string

	// Tokenize asks the gateway to return a token for saving the card
	Tokenize bool
}

type CardChargeResponse struct {
	TransactionID string                 `json:"transactionId"`
	Approved      bool                   `json:"approved"`
	Message       string                 `json:"message,omitempty"`
	Token         string                 `json:"token,omitempty"`
	Raw           map[string]interface{} `json:"-"`
}

// CardGateway charges cards. A declined charge is returned as a response with Approved
// set to false, errors are for charges whose outcome is unknown.
type CardGateway interface {
	Charge(ctx context.Context, charge CardCharge) (*CardChargeResponse, error)
}

// ACHOriginator accepts ACH debits for settlement and returns the entry id.
type ACHOriginator interface {
	Originate(ctx context.Context, entry settlement.NewEntry) (string, error)
}

type httpCardGateway struct {
	cfg    config.CardGateway
	client *http.Client
}

func NewCardGateway(cfg config.CardGateway) (CardGateway, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("card gateway: missing endpoint")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpCardGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type chargeRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`

	CardNumber string `json:"cardNumber,omitempty"`
	Expiration string `json:"expiration,omitempty"`
	CVV        string `json:"cvv,omitempty"`
	Name       string `json:"name,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`

	Token    string `json:"token,omitempty"`
	Tokenize bool   `json:"tokenize,omitempty"`
}

func (g *httpCardGateway) Charge(ctx context.Context, charge CardCharge) (*CardChargeResponse, error) {
	body := chargeRequest{
		Amount:      money.ToDollars(charge.Amount),
		Description: charge.Description,
		Token:       charge.Token,
		Tokenize:    charge.Tokenize,
	}
	if charge.Card != nil {
		body.CardNumber = charge.Card.Number
		body.Expiration = charge.Card.Expiration
		body.CVV = charge.Card.CVV
		body.Name = charge.Card.Name
		body.PostalCode = charge.Card.PostalCode
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	address := strings.TrimSuffix(g.cfg.Endpoint, "/") + "/charges"
	req, err := http.NewRequestWithContext(ctx, "POST", address, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("card gateway: %v", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("trpay/%s", trpay.Version))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", charge.TransactionID)
	if key := g.cfg.GetAPIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("card gateway: %v", err)
	}
	defer resp.Body.Close()

	bs, err = ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("card gateway: reading response: %v", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("card gateway: %s", resp.Status)
	}

	var out CardChargeResponse
	if err := json.Unmarshal(bs, &out); err != nil {
		if resp.StatusCode >= 400 {
			return &CardChargeResponse{Message: resp.Status}, nil
		}
		return nil, fmt.Errorf("card gateway: decoding %s response: %v", resp.Status, err)
	}
	json.Unmarshal(bs, &out.Raw)
	if resp.StatusCode >= 400 {
		// declines and validation failures
		out.Approved = false
		if out.Message == "" {
			out.Message = resp.Status
		}
	}
	return &out, nil
}
