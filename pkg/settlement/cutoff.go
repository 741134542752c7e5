// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

// maxFilesPerCutoff bounds how many files a single cutoff writes.
const maxFilesPerCutoff = 25

// Cutoff runs the end of day ACH cycle: pending batches are closed, written into
// files and every generated file is uploaded.
type Cutoff struct {
	logger      log.Logger
	accumulator *Accumulator
	generator   *Generator
	uploader    *Uploader
}

func NewCutoff(logger log.Logger, accumulator *Accumulator, generator *Generator, uploader *Uploader) *Cutoff {
	return &Cutoff{
		logger:      logger,
		accumulator: accumulator,
		generator:   generator,
		uploader:    uploader,
	}
}

type CutoffSummary struct {
	BatchesClosed int64    `json:"batchesClosed"`
	Files         []string `json:"files"`
	Uploaded      int      `json:"uploaded"`
}

func (c *Cutoff) Run(ctx context.Context) (*CutoffSummary, error) {
	var el base.ErrorList
	sum := &CutoffSummary{}

	n, err := c.accumulator.CloseBatches(ctx)
	if err != nil {
		return sum, err
	}
	sum.BatchesClosed = n

	for i := 0; i < maxFilesPerCutoff; i++ {
		f, err := c.generator.Generate(ctx)
		if errors.Is(err, ErrNoEligibleBatches) {
			break
		}
		if err != nil {
			el.Add(fmt.Errorf("generate: %v", err))
			break
		}
		sum.Files = append(sum.Files, f.ID)
	}

	uploaded, err := c.uploader.UploadPending(ctx)
	sum.Uploaded = uploaded
	if err != nil {
		el.Add(err)
	}

	c.logger.Log(
		"settlement", "cutoff finished",
		"batchesClosed", sum.BatchesClosed,
		"files", len(sum.Files),
		"uploaded", sum.Uploaded,
	)
	if el.Empty() {
		return sum, nil
	}
	return sum, el
}
