// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/payments"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func testdata(name string) string {
	return filepath.Join("..", "..", "pkg", "config", "testdata", name)
}

func TestMain__readConfig(t *testing.T) {
	cfg := readConfig(testdata("valid.yaml"))
	require.NotNil(t, cfg)
	require.Equal(t, "987654320", cfg.ODFI.RoutingNumber)

	require.Nil(t, readConfig(testdata("invalid.yaml")))
	require.Nil(t, readConfig(testdata("missing.yaml")))
}

func TestMain__setup(t *testing.T) {
	cfg := readConfig(testdata("valid.yaml"))
	require.NotNil(t, cfg)
	cfg.PracticeCS.Enabled = false

	logger := log.NewNopLogger()
	db := database.CreateTestSqliteDB(t)
	keeper := secrets.TestStringKeeper(t)

	alerts, err := setupAlerts(logger, cfg)
	require.NoError(t, err)

	pipeline, err := setupSettlement(logger, cfg, db.DB, keeper, alerts)
	require.NoError(t, err)
	defer pipeline.Shutdown()

	ledger, err := setupLedger(context.Background(), logger, cfg.PracticeCS, db.DB)
	require.NoError(t, err)
	require.Nil(t, ledger.recorder())
	require.Nil(t, ledger.acceptor())
	require.Empty(t, ledger.tasks())
	require.NoError(t, ledger.Close())

	repo := payments.NewRepository(db.DB, keeper)

	scheduler, err := setupReturns(logger, cfg, pipeline, repo, ledger)
	require.NoError(t, err)
	require.NotNil(t, scheduler)

	cutoffs, err := setupCutoffs(logger, cfg.ACH.Cutoff, pipeline.cutoff)
	require.NoError(t, err)
	cutoffs.Stop()

	orchestrator, err := setupPayments(logger, cfg, repo, keeper, pipeline, ledger, alerts)
	require.NoError(t, err)
	require.NotNil(t, orchestrator)
}

func TestMain__setupBadTemplate(t *testing.T) {
	cfg := readConfig(testdata("valid.yaml"))
	require.NotNil(t, cfg)
	cfg.ACH.FilenameTemplate = "{{ blah }"

	db := database.CreateTestSqliteDB(t)
	keeper := secrets.TestStringKeeper(t)

	_, err := setupSettlement(log.NewNopLogger(), cfg, db.DB, keeper, nil)
	require.Error(t, err)
}

func TestMain__ledgerTasks(t *testing.T) {
	var lc *ledgerConnection
	require.NoError(t, lc.Close())

	lc = &ledgerConnection{}
	require.Nil(t, lc.tasks())
	require.Nil(t, lc.recorder())
}
