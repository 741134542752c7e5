// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"sync"
)

type MockCardGateway struct {
	Response *CardChargeResponse
	Err      error

	mu      sync.Mutex
	Charges []CardCharge
}

func (g *MockCardGateway) Charge(_ context.Context, charge CardCharge) (*CardChargeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Charges = append(g.Charges, charge)
	if g.Err != nil {
		return nil, g.Err
	}
	if g.Response != nil {
		return g.Response, nil
	}
	return &CardChargeResponse{
		TransactionID: "card-" + charge.TransactionID,
		Approved:      true,
		Token:         "tok-" + charge.TransactionID,
		Raw:           map[string]interface{}{"status": "approved"},
	}, nil
}
