// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"

	"github.com/moov-io/ach"
	"github.com/moov-io/base"
)

type Repository interface {
	// ClaimAttempt inserts a pending attempt for transactionID. When an attempt already
	// exists it's returned with claimed set to false.
	ClaimAttempt(ctx context.Context, transactionID string) (existing *Attempt, claimed bool, err error)
	FinishAttempt(ctx context.Context, transactionID string, status AttemptStatus, errMessage string) error

	SavePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, transactionID string) (*Payment, error)

	SaveMethod(ctx context.Context, m *Method) error
	GetMethod(ctx context.Context, methodID string) (*Method, error)
	ApplyCorrection(ctx context.Context, methodID string, c settlement.Correction) error

	GetEngagementAcceptance(ctx context.Context, key string) (*EngagementAcceptance, error)
	AcceptEngagement(ctx context.Context, acc EngagementAcceptance) error
}

func NewRepository(db *sql.DB, keeper *secrets.StringKeeper) *sqlRepo {
	return &sqlRepo{db: db, keeper: keeper, now: time.Now}
}

type sqlRepo struct {
	db     *sql.DB
	keeper *secrets.StringKeeper

	now func() time.Time
}

func (r *sqlRepo) Close() error {
	return r.db.Close()
}

func (r *sqlRepo) getAttempt(ctx context.Context, transactionID string) (*Attempt, error) {
	query := `select transaction_id, status, error, created_at, updated_at from payment_attempts where transaction_id = ? limit 1;`
	var a Attempt
	var errMessage sql.NullString
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(&a.TransactionID, &a.Status, &errMessage, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Error = errMessage.String
	return &a, nil
}

func (r *sqlRepo) ClaimAttempt(ctx context.Context, transactionID string) (*Attempt, bool, error) {
	now := r.now().UTC()
	query := `insert into payment_attempts (transaction_id, status, error, created_at, updated_at) values (?, ?, '', ?, ?);`
	_, err := r.db.ExecContext(ctx, query, transactionID, AttemptPending, now, now)
	if err == nil {
		return nil, true, nil
	}
	if !database.UniqueViolation(err) {
		return nil, false, fmt.Errorf("claim attempt: %v", err)
	}
	existing, err := r.getAttempt(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *sqlRepo) FinishAttempt(ctx context.Context, transactionID string, status AttemptStatus, errMessage string) error {
	query := `update payment_attempts set status = ?, error = ?, updated_at = ? where transaction_id = ? and status = ?;`
	res, err := r.db.ExecContext(ctx, query, status, errMessage, r.now().UTC(), transactionID, AttemptPending)
	if err != nil {
		return fmt.Errorf("finish attempt: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish attempt %s: %w", transactionID, ErrNotFound)
	}
	return nil
}

func (r *sqlRepo) SavePayment(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = base.ID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	query := `insert into payments (payment_id, transaction_id, gateway_transaction_id, customer_ref, client_key, amount, fee, total, method, charge_method, last_four, description, invoices, source, created_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TransactionID, p.GatewayTransactionID, p.CustomerRef, p.ClientKey,
		p.Amount, p.Fee, p.Total, p.Method, p.ChargeMethod, p.LastFour, p.Description,
		strings.Join(p.Invoices, ","), p.Source, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save payment: %v", err)
	}
	return nil
}

func (r *sqlRepo) GetPayment(ctx context.Context, transactionID string) (*Payment, error) {
	query := `select payment_id, transaction_id, gateway_transaction_id, customer_ref, client_key, amount, fee, total, method, charge_method, last_four, description, invoices, source, created_at
from payments where transaction_id = ? limit 1;`
	var p Payment
	var gateway, invoices sql.NullString
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&p.ID, &p.TransactionID, &gateway, &p.CustomerRef, &p.ClientKey,
		&p.Amount, &p.Fee, &p.Total, &p.Method, &p.ChargeMethod, &p.LastFour, &p.Description,
		&invoices, &p.Source, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.GatewayTransactionID = gateway.String
	if invoices.String != "" {
		p.Invoices = strings.Split(invoices.String, ",")
	}
	return &p, nil
}

func (r *sqlRepo) SaveMethod(ctx context.Context, m *Method) error {
	if m.ID == "" {
		m.ID = base.ID()
	}
	now := r.now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	query := `insert into payment_methods (method_id, customer_ref, type, name, last_four, routing_number_encrypted, account_number_encrypted, account_type, holder_type, card_token, expiration, created_at, updated_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.CustomerRef, m.Kind, m.Name, m.LastFour,
		m.RoutingNumberEncrypted, m.AccountNumberEncrypted, m.AccountType, m.HolderType,
		m.CardToken, m.Expiration, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save payment method: %v", err)
	}
	return nil
}

func (r *sqlRepo) GetMethod(ctx context.Context, methodID string) (*Method, error) {
	query := `select method_id, customer_ref, type, name, last_four, routing_number_encrypted, account_number_encrypted, account_type, holder_type, card_token, expiration, created_at, updated_at
from payment_methods where method_id = ? and deleted_at is null limit 1;`
	var m Method
	var name, routing, account, accountType, holderType, token, expiration sql.NullString
	err := r.db.QueryRowContext(ctx, query, methodID).Scan(
		&m.ID, &m.CustomerRef, &m.Kind, &name, &m.LastFour,
		&routing, &account, &accountType, &holderType,
		&token, &expiration, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Name = name.String
	m.RoutingNumberEncrypted = routing.String
	m.AccountNumberEncrypted = account.String
	m.AccountType = accountType.String
	m.HolderType = holderType.String
	m.CardToken = token.String
	m.Expiration = expiration.String
	return &m, nil
}

// ApplyCorrection updates a saved ACH method from a notification of change.
func (r *sqlRepo) ApplyCorrection(ctx context.Context, methodID string, c settlement.Correction) error {
	m, err := r.GetMethod(ctx, methodID)
	if err != nil {
		return err
	}
	if m.Kind != "ach" {
		return fmt.Errorf("payment method %s is not a bank account", methodID)
	}
	if c.RoutingNumber != "" {
		if m.RoutingNumberEncrypted, err = r.keeper.EncryptString(ctx, c.RoutingNumber); err != nil {
			return err
		}
	}
	if c.AccountNumber != "" {
		if m.AccountNumberEncrypted, err = r.keeper.EncryptString(ctx, c.AccountNumber); err != nil {
			return err
		}
		m.LastFour = secrets.LastFour(c.AccountNumber)
	}
	if c.AccountType != "" {
		m.AccountType = strings.ToLower(c.AccountType)
	}
	switch c.TransactionCode {
	case ach.CheckingCredit, ach.CheckingDebit:
		m.AccountType = "checking"
	case ach.SavingsCredit, ach.SavingsDebit:
		m.AccountType = "savings"
	}

	query := `update payment_methods set routing_number_encrypted = ?, account_number_encrypted = ?, last_four = ?, account_type = ?, updated_at = ? where method_id = ? and deleted_at is null;`
	_, err = r.db.ExecContext(ctx, query, m.RoutingNumberEncrypted, m.AccountNumberEncrypted, m.LastFour, m.AccountType, r.now().UTC(), methodID)
	if err != nil {
		return fmt.Errorf("correct payment method: %v", err)
	}
	return nil
}

func (r *sqlRepo) GetEngagementAcceptance(ctx context.Context, key string) (*EngagementAcceptance, error) {
	query := `select engagement_key, transaction_id, new_type_key, accepted_at from engagement_acceptances where engagement_key = ? limit 1;`
	var acc EngagementAcceptance
	var newType sql.NullString
	err := r.db.QueryRowContext(ctx, query, key).Scan(&acc.Key, &acc.TransactionID, &newType, &acc.AcceptedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.NewTypeKey = newType.String
	return &acc, nil
}

func (r *sqlRepo) AcceptEngagement(ctx context.Context, acc EngagementAcceptance) error {
	if acc.AcceptedAt.IsZero() {
		acc.AcceptedAt = r.now().UTC()
	}
	query := `insert into engagement_acceptances (engagement_key, transaction_id, new_type_key, accepted_at) values (?, ?, ?, ?);`
	_, err := r.db.ExecContext(ctx, query, acc.Key, acc.TransactionID, acc.NewTypeKey, acc.AcceptedAt)
	if err != nil && !database.UniqueViolation(err) {
		return fmt.Errorf("accept engagement: %v", err)
	}
	return nil
}
