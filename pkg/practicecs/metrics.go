// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package practicecs

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerWrites = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "practicecs_ledger_writes",
		Help: "Counter of PracticeCS ledger writes by outcome",
	}, []string{"status"})

	queueDrained = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "practicecs_queue_drained",
		Help: "Counter of queued ledger entries by drain outcome",
	}, []string{"status"})

	engagementsAccepted = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "practicecs_engagements_accepted",
		Help: "Counter of engagements accepted by payments",
	}, []string{"status"})
)
