// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/upload"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/ach"
	"github.com/moov-io/base"
	"github.com/robfig/cron/v3"
)

// Settlement is the part of the settlement pipeline driven by processor feedback.
type Settlement interface {
	Acknowledge(ctx context.Context, ack settlement.FileAck) (*settlement.File, error)
	SettleMatured(ctx context.Context, asOf time.Time) (int, error)
	UploadPending(ctx context.Context) (int, error)
}

// Task is extra work run on every poll, like draining the ledger queue.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// farLookback is how far back each acknowledgement report reaches.
const farLookback = 7 * 24 * time.Hour

type Scheduler struct {
	logger log.Logger
	cfg    config.Returns

	processor  *Processor
	client     kotapay.Client
	agent      upload.Agent
	settlement Settlement
	tasks      []Task

	cron *cron.Cron
	now  func() time.Time
}

func NewScheduler(
	logger log.Logger,
	cfg config.Returns,
	processor *Processor,
	client kotapay.Client,
	agent upload.Agent,
	settle Settlement,
	tasks ...Task,
) *Scheduler {
	return &Scheduler{
		logger:     logger,
		cfg:        cfg,
		processor:  processor,
		client:     client,
		agent:      agent,
		settlement: settle,
		tasks:      tasks,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:        time.Now,
	}
}

// Start polls every PollInterval until Shutdown is called. A zero interval disables polling.
func (s *Scheduler) Start() error {
	if s.cfg.PollInterval <= 0 {
		s.logger.Log("returns", "skipping returns processing")
		return nil
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %v", s.cfg.PollInterval), func() {
		if err := s.Tick(context.Background()); err != nil {
			s.logger.Log("returns", "problem processing returns", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("returns scheduler: %v", err)
	}
	s.logger.Log("returns", fmt.Sprintf("starting returns processor with interval=%v", s.cfg.PollInterval))
	s.cron.Start()
	return nil
}

func (s *Scheduler) Shutdown() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Log("returns", "scheduler shutdown")
}

// Tick runs one poll. Each step runs even when an earlier one fails.
func (s *Scheduler) Tick(ctx context.Context) error {
	var el base.ErrorList
	now := s.now()

	if err := s.acknowledgements(ctx, now); err != nil {
		el.Add(fmt.Errorf("acknowledgement report: %v", err))
	}
	if err := s.returnFiles(ctx); err != nil {
		el.Add(fmt.Errorf("return files: %v", err))
	}
	if s.settlement != nil {
		if _, err := s.settlement.SettleMatured(ctx, now); err != nil {
			el.Add(fmt.Errorf("settle: %v", err))
		}
		if _, err := s.settlement.UploadPending(ctx); err != nil {
			el.Add(fmt.Errorf("upload pending: %v", err))
		}
	}
	for i := range s.tasks {
		if err := s.tasks[i].Run(ctx); err != nil {
			el.Add(fmt.Errorf("%s: %v", s.tasks[i].Name, err))
		}
	}
	if el.Empty() {
		return nil
	}
	return el
}

func (s *Scheduler) acknowledgements(ctx context.Context, now time.Time) error {
	if s.client == nil {
		return nil
	}
	report, err := s.client.FileAcknowledgementReport(ctx, kotapay.NewFARRequest(now.Add(-farLookback), now))
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	var el base.ErrorList
	if s.settlement != nil {
		for _, ack := range report.Files {
			_, err := s.settlement.Acknowledge(ctx, settlement.FileAck{
				Reference: ack.Reference,
				Filename:  ack.Filename,
				Accepted:  ack.Accepted(),
				Reason:    ack.Reason,
			})
			if errors.Is(err, settlement.ErrNotFound) {
				s.logger.Log("returns", "acknowledgement for unknown file", "reference", ack.Reference, "filename", ack.Filename)
				continue
			}
			if err != nil {
				el.Add(err)
			}
		}
	}
	sum, err := s.processor.Process(ctx, FromFAR(report.Returns))
	if err != nil {
		el.Add(err)
	}
	s.logSummary("far", sum)
	if el.Empty() {
		return nil
	}
	return el
}

// returnFiles processes NACHA return files left by the processor, deleting each once handled.
func (s *Scheduler) returnFiles(ctx context.Context) error {
	if s.agent == nil {
		return nil
	}
	files, err := s.agent.GetReturnFiles(ctx)
	if err != nil {
		return err
	}

	var el base.ErrorList
	var total Summary
	for i := range files {
		if files[i].Contents == nil {
			continue
		}
		file, err := ach.NewReader(files[i].Contents).Read()
		files[i].Close()
		if err != nil {
			el.Add(fmt.Errorf("%s: %v", files[i].Filename, err))
			continue
		}
		sum, err := s.processor.Process(ctx, FromFile(files[i].Filename, &file))
		total.add(sum)
		if err != nil {
			el.Add(fmt.Errorf("%s: %v", files[i].Filename, err))
			continue
		}
		if err := s.agent.Delete(files[i].Filename); err != nil {
			el.Add(fmt.Errorf("delete %s: %v", files[i].Filename, err))
		}
	}
	if len(files) > 0 {
		s.logSummary("files", total)
	}
	if el.Empty() {
		return nil
	}
	return el
}

func (s *Scheduler) logSummary(source string, sum Summary) {
	if sum == (Summary{}) {
		return
	}
	s.logger.Log(
		"returns", "processed returns", "source", source,
		"processed", sum.Processed, "duplicates", sum.Duplicates, "unknown", sum.Unknown,
		"corrections", sum.Corrections, "retries", sum.Retries, "hard", sum.HardReturns)
}
