// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	entriesAccumulated = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_entries_accumulated",
		Help: "Counter of ACH debit entries added to batches",
	}, []string{"sec_code"})

	batchesOpened = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_batches_opened",
		Help: "Counter of ACH batches created",
	}, []string{"sec_code"})

	filesGenerated = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_files_generated",
		Help: "Counter of NACHA files generated",
	}, []string{"status"})

	fileUploads = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_file_uploads",
		Help: "Counter of NACHA file upload attempts",
	}, []string{"status"})

	entriesSettled = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_entries_settled",
		Help: "Counter of ACH entries considered settled",
	}, nil)
)
