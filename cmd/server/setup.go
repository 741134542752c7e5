// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/audittrail"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/payments"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/practicecs"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/returns"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/upload"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/x/schedule"

	"github.com/go-kit/kit/log"
)

func setupAlerts(logger log.Logger, cfg *config.Config) (*notify.MultiSender, error) {
	return notify.NewMultiSender(logger, cfg.Pipeline.Notifications)
}

// settlementPipeline holds everything between an accumulated entry and a file at Kotapay.
type settlementPipeline struct {
	logger log.Logger

	repo        *settlement.SQLRepository
	accumulator *settlement.Accumulator
	generator   *settlement.Generator
	uploader    *settlement.Uploader
	cutoff      *settlement.Cutoff

	client  kotapay.Client
	agent   upload.Agent
	storage audittrail.Storage
	events  events.Publisher
}

func setupSettlement(logger log.Logger, cfg *config.Config, db *sql.DB, keeper *secrets.StringKeeper, alerts notify.Sender) (*settlementPipeline, error) {
	storage, err := audittrail.NewStorage(cfg.Pipeline.AuditTrail, keeper)
	if err != nil {
		return nil, fmt.Errorf("audit trail: %v", err)
	}
	pub, err := events.NewPublisher(logger, cfg.Pipeline.Stream)
	if err != nil {
		return nil, fmt.Errorf("events: %v", err)
	}

	client := kotapay.New(logger, cfg.Kotapay)
	agent, err := upload.New(logger, cfg.Upload, client)
	if err != nil {
		return nil, fmt.Errorf("upload agent: %v", err)
	}

	repo := settlement.NewRepository(db)
	accumulator := settlement.NewAccumulator(logger, cfg.ACH, repo, keeper)
	generator, err := settlement.NewGenerator(logger, cfg.ODFI, cfg.ACH, repo, keeper, storage, pub)
	if err != nil {
		return nil, fmt.Errorf("file generator: %v", err)
	}
	uploader := settlement.NewUploader(logger, cfg.Upload, cfg.ACH, repo, agent, storage, alerts, pub)

	return &settlementPipeline{
		logger:      logger,
		repo:        repo,
		accumulator: accumulator,
		generator:   generator,
		uploader:    uploader,
		cutoff:      settlement.NewCutoff(logger, accumulator, generator, uploader),
		client:      client,
		agent:       agent,
		storage:     storage,
		events:      pub,
	}, nil
}

func (p *settlementPipeline) Shutdown() {
	if p == nil {
		return
	}
	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()

	if err := p.events.Shutdown(ctx); err != nil {
		p.logger.Log("shutdown", "events", "error", err)
	}
	if err := p.storage.Close(); err != nil {
		p.logger.Log("shutdown", "audittrail", "error", err)
	}
}

// ledgerConnection is the PracticeCS side of a payment. Its fields are nil when
// the integration is disabled.
type ledgerConnection struct {
	db          *sql.DB
	ledger      *practicecs.Ledger
	queue       *practicecs.Queue
	engagements *practicecs.Engagements
}

func setupLedger(ctx context.Context, logger log.Logger, cfg config.PracticeCS, local *sql.DB) (*ledgerConnection, error) {
	if !cfg.Enabled {
		logger.Log("practicecs", "ledger integration disabled")
		return &ledgerConnection{}, nil
	}
	db, err := database.SQLServer(ctx, logger, cfg.GetDSN())
	if err != nil {
		return nil, err
	}
	writer := practicecs.NewSQLWriter(cfg, db)
	queue := practicecs.NewQueue(logger, local, writer, cfg.MaxQueueAttempts)

	logger.Log("practicecs", fmt.Sprintf("ledger integration enabled in %s mode", cfg.Mode))

	return &ledgerConnection{
		db:          db,
		ledger:      practicecs.NewLedger(logger, cfg, writer, queue),
		queue:       queue,
		engagements: practicecs.NewEngagements(cfg, db),
	}, nil
}

// recorder returns the ledger as an interface, keeping a disabled ledger an untyped nil.
func (lc *ledgerConnection) recorder() payments.LedgerRecorder {
	if lc.ledger == nil {
		return nil
	}
	return lc.ledger
}

func (lc *ledgerConnection) acceptor() payments.EngagementAcceptor {
	if lc.engagements == nil {
		return nil
	}
	return lc.engagements
}

func (lc *ledgerConnection) tasks() []returns.Task {
	if lc.queue == nil {
		return nil
	}
	return []returns.Task{
		{
			Name: "practicecs-queue",
			Run: func(ctx context.Context) error {
				_, err := lc.queue.Drain(ctx)
				return err
			},
		},
	}
}

func (lc *ledgerConnection) Close() error {
	if lc == nil || lc.db == nil {
		return nil
	}
	return lc.db.Close()
}

func setupReturns(
	logger log.Logger,
	cfg *config.Config,
	pipeline *settlementPipeline,
	methods returns.MethodCorrector,
	ledger *ledgerConnection,
) (*returns.Scheduler, error) {
	var from *config.Email
	if cfg.Pipeline.Notifications != nil {
		from = cfg.Pipeline.Notifications.Email
	}
	alerts, err := notify.Returns(logger, cfg.Returns, from)
	if err != nil {
		return nil, err
	}
	processor := returns.NewProcessor(logger, cfg.Returns, pipeline.repo, pipeline.accumulator, methods, alerts, pipeline.events)
	return returns.NewScheduler(logger, cfg.Returns, processor, pipeline.client, pipeline.agent, pipeline.uploader, ledger.tasks()...), nil
}

func setupCutoffs(logger log.Logger, cfg config.Cutoff, cutoff *settlement.Cutoff) (*schedule.CutoffTimes, error) {
	return schedule.ForCutoff(cfg, func(when time.Time) {
		ctx, cancelFunc := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancelFunc()

		sum, err := cutoff.Run(ctx)
		if err != nil {
			logger.Log("cutoff", fmt.Sprintf("ACH cutoff at %v: %v", when.Format(time.RFC3339), err))
		}
		if sum != nil {
			logger.Log("cutoff", "completed", "batches", sum.BatchesClosed, "files", len(sum.Files), "uploaded", sum.Uploaded)
		}
	})
}

func setupPayments(
	logger log.Logger,
	cfg *config.Config,
	repo payments.Repository,
	keeper *secrets.StringKeeper,
	pipeline *settlementPipeline,
	ledger *ledgerConnection,
	alerts notify.Sender,
) (*payments.Orchestrator, error) {
	var cards payments.CardGateway
	if cfg.Payments.CardGateway.Endpoint != "" {
		gateway, err := payments.NewCardGateway(cfg.Payments.CardGateway)
		if err != nil {
			return nil, fmt.Errorf("card gateway: %v", err)
		}
		cards = gateway
	} else {
		logger.Log("payments", "no card gateway configured, card payments are disabled")
	}

	var connectionURI string
	if n := cfg.Pipeline.Notifications; n != nil && n.Email != nil {
		connectionURI = n.Email.ConnectionURI
	}
	receipts, err := notify.NewReceiptSender(cfg.Payments.Receipts, connectionURI)
	if err != nil {
		return nil, err
	}

	return payments.NewOrchestrator(logger, repo, keeper, cards, pipeline.accumulator, ledger.recorder(), ledger.acceptor(), receipts, alerts), nil
}
