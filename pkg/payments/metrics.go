// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	paymentsProcessed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "payments_processed",
		Help: "Counter of payments processed by method and outcome",
	}, []string{"method", "source", "status"})

	ledgerOutcomes = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "payments_ledger_outcomes",
		Help: "Counter of ledger outcomes for successful payments",
	}, []string{"status"})

	engagementFailures = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "payments_engagement_failures",
		Help: "Counter of engagements which couldn't be accepted after a payment",
	}, nil)
)
