// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/audittrail"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/upload"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func testACHConfig() config.ACH {
	return config.ACH{
		DefaultSECCode:      "WEB",
		AllowedSECCodes:     []string{"WEB", "PPD", "CCD"},
		EntryDescription:    "PAYMENT",
		EffectiveDateOffset: 1,
		Cutoff: config.Cutoff{
			Timezone: "America/New_York",
			Time:     "16:00",
		},
		MaxEntriesPerBatch: 100,
		MaxBatchesPerFile:  10,
		SettlementDays:     2,
	}
}

func testODFI() config.ODFI {
	return config.ODFI{
		RoutingNumber: "987654320",
		Gateway: config.Gateway{
			Origin:          "987654320",
			OriginName:      "Foley Bridge",
			Destination:     "231380104",
			DestinationName: "Kotapay",
		},
		CompanyName:           "Foley Bridge",
		CompanyIdentification: "1234567890",
		Settlement: &config.SettlementAccount{
			RoutingNumber: "987654320",
			AccountNumber: "99887766",
			AccountType:   "checking",
		},
	}
}

// tuesday is a banking day before the cutoff
var tuesday = time.Date(2020, time.October, 13, 14, 0, 0, 0, time.UTC)

type testSettlement struct {
	repo   *SQLRepository
	keeper *secrets.StringKeeper

	accumulator *Accumulator
	generator   *Generator
	uploader    *Uploader

	agent   *upload.MockAgent
	storage *audittrail.MockStorage
	sender  *notify.MockSender
	events  *events.MockPublisher
}

func setupSettlement(t *testing.T, cfg config.ACH) *testSettlement {
	t.Helper()

	db := database.CreateTestSqliteDB(t)
	repo := NewRepository(db.DB)
	keeper := secrets.TestStringKeeper(t)

	ts := &testSettlement{
		repo:    repo,
		keeper:  keeper,
		agent:   &upload.MockAgent{},
		storage: audittrail.NewMockStorage(),
		sender:  &notify.MockSender{},
		events:  &events.MockPublisher{},
	}
	ts.accumulator = NewAccumulator(log.NewNopLogger(), cfg, repo, keeper)
	ts.accumulator.now = func() time.Time { return tuesday }

	gen, err := NewGenerator(log.NewNopLogger(), testODFI(), cfg, repo, keeper, ts.storage, ts.events)
	require.NoError(t, err)
	gen.now = func() time.Time { return tuesday.Add(3 * time.Hour) }
	ts.generator = gen

	ts.uploader = NewUploader(log.NewNopLogger(), config.Upload{MaxAttempts: 3}, cfg, repo, ts.agent, ts.storage, ts.sender, ts.events)
	return ts
}

func (ts *testSettlement) addEntry(t *testing.T, sec string, amount int64) *Entry {
	t.Helper()

	entry, err := ts.accumulator.AddEntry(context.Background(), NewEntry{
		PaymentID:      "payment-1",
		TransactionID:  "txn-1",
		IndividualName: "Jane Doe",
		RoutingNumber:  "231380104",
		AccountNumber:  "123456789",
		AccountType:    "checking",
		Amount:         amount,
		SECCode:        sec,
	})
	require.NoError(t, err)
	return entry
}
