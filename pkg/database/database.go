// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/lopezator/migrator"
)

// New establishes a database connection according to the config. MySQL is used
// when configured, otherwise SQLite.
func New(ctx context.Context, logger log.Logger, cfg config.Database) (*sql.DB, error) {
	switch {
	case cfg.MySQL != nil:
		logger.Log("database", "looking for mysql database provider")
		return mysqlConnection(logger, cfg.MySQL.Username, cfg.MySQL.GetPassword(), cfg.MySQL.Address, cfg.MySQL.Database).Connect(ctx)
	case cfg.SQLite != nil:
		logger.Log("database", "looking for sqlite database provider")
		return sqliteConnection(logger, cfg.SQLite.Path).Connect(ctx)
	}
	return nil, errors.New("no database configured")
}

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

func migrate(db *sql.DB, migrations migrator.Option) error {
	m, err := migrator.New(migrations)
	if err != nil {
		return err
	}
	if err := m.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %v", err)
	}
	return nil
}

// UniqueViolation returns true when the provided error matches a database error
// for duplicate entries (violating a unique table constraint).
func UniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return MySQLUniqueViolation(err) || SqliteUniqueViolation(err)
}

// Tx runs fn inside a transaction which is committed when fn returns nil.
func Tx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (after %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}
