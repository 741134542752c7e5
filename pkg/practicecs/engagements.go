// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package practicecs

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
)

// Engagements accepts PracticeCS engagements paid for by a payment.
type Engagements struct {
	cfg config.PracticeCS
	db  *sql.DB

	now func() time.Time
}

func NewEngagements(cfg config.PracticeCS, db *sql.DB) *Engagements {
	return &Engagements{
		cfg: cfg,
		db:  db,
		now: time.Now,
	}
}

// Accept marks the engagement accepted and, when configured, moves it to the accepted
// engagement type. It returns the new type key, empty when the type is unchanged.
func (e *Engagements) Accept(ctx context.Context, engagementKey string) (string, error) {
	key, err := strconv.Atoi(engagementKey)
	if err != nil || key <= 0 {
		return "", fmt.Errorf("invalid engagement key %q", engagementKey)
	}

	var res sql.Result
	if e.cfg.AcceptedEngagementType > 0 {
		res, err = e.db.ExecContext(ctx,
			`update Engagement set engagement_type_KEY = @p1, accepted_date = @p2 where engagement_KEY = @p3;`,
			e.cfg.AcceptedEngagementType, e.now().UTC(), key,
		)
	} else {
		res, err = e.db.ExecContext(ctx,
			`update Engagement set accepted_date = @p1 where engagement_KEY = @p2;`,
			e.now().UTC(), key,
		)
	}
	if err != nil {
		engagementsAccepted.With("status", "error").Add(1)
		return "", fmt.Errorf("accept engagement %d: %v", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		engagementsAccepted.With("status", "missing").Add(1)
		return "", fmt.Errorf("engagement %d: %w", key, ErrNotFound)
	}
	engagementsAccepted.With("status", "accepted").Add(1)

	if e.cfg.AcceptedEngagementType > 0 {
		return strconv.Itoa(e.cfg.AcceptedEngagementType), nil
	}
	return "", nil
}
