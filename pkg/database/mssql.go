// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	mssqlConnections = kitprom.NewGaugeFrom(stdprom.GaugeOpts{
		Name: "mssql_connections",
		Help: "How many MSSQL connections and what status they're in.",
	}, []string{"state"})

	maxActiveMSSQLConnections = func() int {
		if v := os.Getenv("MSSQL_MAX_CONNECTIONS"); v != "" {
			if n, _ := strconv.ParseInt(v, 10, 32); n > 0 {
				return int(n)
			}
		}
		return 8
	}()
)

// SQLServer connects to an existing SQL Server database, like the PracticeCS ledger.
// We never run migrations against it. Queries must use @name parameters.
func SQLServer(ctx context.Context, logger log.Logger, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("missing sql server dsn")
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxActiveMSSQLConnections)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log("database", "connected to sql server")

	go func() {
		t := time.NewTicker(1 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				stats := db.Stats()
				mssqlConnections.With("state", "idle").Set(float64(stats.Idle))
				mssqlConnections.With("state", "inuse").Set(float64(stats.InUse))
				mssqlConnections.With("state", "open").Set(float64(stats.OpenConnections))
			}
		}
	}()

	return db, nil
}
