// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/practicecs"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"

	"github.com/go-kit/kit/log"
)

var testNow = time.Date(2020, time.October, 13, 14, 0, 0, 0, time.UTC)

type mockLedger struct {
	mu      sync.Mutex
	entries []practicecs.Entry
	status  practicecs.Status
	err     error
}

func (l *mockLedger) Record(_ context.Context, e practicecs.Entry) (practicecs.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return practicecs.Receipt{}, l.err
	}
	l.entries = append(l.entries, e)
	status := l.status
	if status == "" {
		status = practicecs.StatusWritten
	}
	return practicecs.Receipt{Status: status, Reference: "ledger-" + e.Reference}, nil
}

type mockEngagements struct {
	mu       sync.Mutex
	accepted []string
	failing  map[string]error
}

func (m *mockEngagements) Accept(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing[key]; err != nil {
		return "", err
	}
	m.accepted = append(m.accepted, key)
	return "3", nil
}

type mockOriginator struct {
	entries []settlement.NewEntry
	err     error
}

func (m *mockOriginator) Originate(_ context.Context, e settlement.NewEntry) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.entries = append(m.entries, e)
	return "entry-" + e.TransactionID, nil
}

type testPayments struct {
	repo   *sqlRepo
	keeper *secrets.StringKeeper

	cards       *MockCardGateway
	originator  *mockOriginator
	ledger      *mockLedger
	engagements *mockEngagements
	receipts    *notify.MockReceipts
	alerts      *notify.MockSender

	orchestrator *Orchestrator
}

func setupPayments(t *testing.T) *testPayments {
	t.Helper()

	db := database.CreateTestSqliteDB(t)
	keeper := secrets.TestStringKeeper(t)

	tp := &testPayments{
		repo:        NewRepository(db.DB, keeper),
		keeper:      keeper,
		cards:       &MockCardGateway{},
		originator:  &mockOriginator{},
		ledger:      &mockLedger{},
		engagements: &mockEngagements{},
		receipts:    &notify.MockReceipts{},
		alerts:      &notify.MockSender{},
	}
	tp.repo.now = func() time.Time { return testNow }
	tp.orchestrator = NewOrchestrator(log.NewNopLogger(), tp.repo, keeper, tp.cards, tp.originator, tp.ledger, tp.engagements, tp.receipts, tp.alerts)
	tp.orchestrator.now = func() time.Time { return testNow }
	return tp
}

func testDetails() Details {
	return Details{
		TransactionID: "txn-1",
		CustomerRef:   "cust-42",
		ClientKey:     1001,
		Email:         "jane@example.com",
		Amount:        10000,
		Fee:           300,
		Invoices: []Invoice{
			{Number: "INV-1", ClientKey: 1001, Amount: 6000},
			{Number: "INV-2", ClientKey: 1001, Amount: 4000},
		},
		SelectedInvoices: []string{"INV-1", "INV-2"},
	}
}

func testCard() CardDetails {
	return CardDetails{
		Number:     "4111111111111111",
		Expiration: "12/25",
		CVV:        "123",
		Name:       "Jane Doe",
		PostalCode: "78701",
	}
}

func testACH() ACHDetails {
	return ACHDetails{
		AccountName:   "Jane Doe",
		RoutingNumber: "231380104",
		AccountNumber: "123456789",
		AccountType:   "checking",
		HolderType:    "personal",
	}
}

func testACHConfig() config.ACH {
	return config.ACH{
		DefaultSECCode:      "WEB",
		AllowedSECCodes:     []string{"WEB", "PPD", "CCD", "TEL"},
		EntryDescription:    "PAYMENT",
		EffectiveDateOffset: 1,
		Cutoff:              config.Cutoff{Timezone: "America/New_York", Time: "16:00"},
		MaxEntriesPerBatch:  100,
		MaxBatchesPerFile:   10,
		SettlementDays:      2,
	}
}

var errBoom = errors.New("boom")
