// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package returns

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/moov-io/ach"
	"github.com/moov-io/base"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	returnsProcessed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_returns_processed",
		Help: "Counter of ACH returns and corrections processed",
	}, []string{"kind", "code"})

	missingReturnEntries = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ach_returns_missing_entries",
		Help: "Counter of returns received for trace numbers we didn't originate",
	}, []string{"code"})
)

// EntryStore finds entries and records processed returns exactly once.
type EntryStore interface {
	GetEntryByTrace(ctx context.Context, traceNumber string) (*settlement.Entry, error)
	HasReturn(ctx context.Context, traceNumber, code string) (bool, error)
	RecordReturn(ctx context.Context, rec settlement.ReturnRecord, markReturned bool) (bool, error)
}

// Retrier re-enters entries into batch accumulation and fixes their stored accounts.
type Retrier interface {
	Retry(ctx context.Context, original *settlement.Entry, delayDays int) (*settlement.Entry, error)
	ApplyCorrection(ctx context.Context, entryID string, c settlement.Correction) (*settlement.Entry, error)
}

// MethodCorrector updates a saved payment method from a notification of change.
type MethodCorrector interface {
	ApplyCorrection(ctx context.Context, methodID string, c settlement.Correction) error
}

type Processor struct {
	logger  log.Logger
	cfg     config.Returns
	entries EntryStore
	retrier Retrier
	methods MethodCorrector
	alerts  notify.Sender
	events  events.Publisher
}

func NewProcessor(
	logger log.Logger,
	cfg config.Returns,
	entries EntryStore,
	retrier Retrier,
	methods MethodCorrector,
	alerts notify.Sender,
	pub events.Publisher,
) *Processor {
	return &Processor{
		logger:  logger,
		cfg:     cfg,
		entries: entries,
		retrier: retrier,
		methods: methods,
		alerts:  alerts,
		events:  pub,
	}
}

// Summary counts what happened to a set of records.
type Summary struct {
	Processed   int
	Duplicates  int
	Unknown     int
	Corrections int
	Retries     int
	HardReturns int
}

func (s *Summary) add(other Summary) {
	s.Processed += other.Processed
	s.Duplicates += other.Duplicates
	s.Unknown += other.Unknown
	s.Corrections += other.Corrections
	s.Retries += other.Retries
	s.HardReturns += other.HardReturns
}

// Process handles every record, continuing past individual failures.
func (p *Processor) Process(ctx context.Context, records []Record) (Summary, error) {
	var sum Summary
	var el base.ErrorList
	for i := range records {
		if err := p.process(ctx, records[i], &sum); err != nil {
			el.Add(fmt.Errorf("trace %s code %s: %v", records[i].TraceNumber, records[i].Code, err))
		}
	}
	if el.Empty() {
		return sum, nil
	}
	return sum, el
}

func (p *Processor) process(ctx context.Context, rec Record, sum *Summary) error {
	if rec.TraceNumber == "" || rec.Code == "" {
		return errors.New("missing trace number or code")
	}
	entry, err := p.entries.GetEntryByTrace(ctx, rec.TraceNumber)
	if err != nil {
		if errors.Is(err, settlement.ErrNotFound) {
			sum.Unknown++
			missingReturnEntries.With("code", rec.Code).Add(1)
			p.logger.Log("returns", "no entry found for return", "traceNumber", rec.TraceNumber, "code", rec.Code, "source", rec.Source)
			return nil
		}
		return err
	}

	seen, err := p.entries.HasReturn(ctx, rec.TraceNumber, rec.Code)
	if err != nil {
		return err
	}
	if seen {
		sum.Duplicates++
		return nil
	}

	kind := Classify(p.cfg, rec.Code)
	returnsProcessed.With("kind", string(kind), "code", rec.Code).Add(1)

	switch kind {
	case settlement.KindCorrection:
		return p.correction(ctx, entry, rec, sum)
	case settlement.KindSoft:
		return p.softReturn(ctx, entry, rec, sum)
	default:
		return p.hardReturn(ctx, entry, rec, sum, "")
	}
}

func (p *Processor) record(ctx context.Context, entry *settlement.Entry, rec Record, kind settlement.ReturnKind, markReturned bool) (bool, error) {
	return p.entries.RecordReturn(ctx, settlement.ReturnRecord{
		TraceNumber:   rec.TraceNumber,
		Code:          rec.Code,
		EntryID:       entry.ID,
		Kind:          kind,
		CorrectedData: rec.CorrectedData,
	}, markReturned)
}

// correction applies a notification of change before recording it, so a failed update
// is attempted again with the next report.
func (p *Processor) correction(ctx context.Context, entry *settlement.Entry, rec Record, sum *Summary) error {
	if p.cfg.AutoApplyNOC {
		c, err := ParseCorrection(rec.Code, rec.CorrectedData)
		switch {
		case errors.Is(err, ErrUnsupportedCorrection):
			p.logger.Log("returns", "change code is not applied automatically", "code", rec.Code, "entryID", entry.ID)
		case err != nil:
			return err
		default:
			if _, err := p.retrier.ApplyCorrection(ctx, entry.ID, c); err != nil {
				return fmt.Errorf("correct entry %s: %v", entry.ID, err)
			}
			if entry.MethodID != "" && p.methods != nil {
				if err := p.methods.ApplyCorrection(ctx, entry.MethodID, c); err != nil {
					return fmt.Errorf("correct payment method %s: %v", entry.MethodID, err)
				}
			}
			sum.Corrections++
			p.logger.Log("returns", "applied notification of change", "code", rec.Code, "entryID", entry.ID)
			p.publish(ctx, events.New(events.EntryCorrected, entry.ID, map[string]string{"code": rec.Code}))
		}
	}
	processed, err := p.record(ctx, entry, rec, settlement.KindCorrection, false)
	if err != nil {
		return err
	}
	if processed {
		sum.Processed++
	} else {
		sum.Duplicates++
	}
	return nil
}

func (p *Processor) softReturn(ctx context.Context, entry *settlement.Entry, rec Record, sum *Summary) error {
	if !p.cfg.AutoRetrySoftReturns {
		return p.hardReturn(ctx, entry, rec, sum, "automatic retries are disabled")
	}
	if entry.RetryCount >= p.cfg.MaxRetryAttempts {
		return p.hardReturn(ctx, entry, rec, sum, fmt.Sprintf("retried %d times", entry.RetryCount))
	}

	// The retry is accumulated before the return is recorded so a failed retry is
	// attempted again with the next report. Retry returns the existing entry on repeats.
	retry, err := p.retrier.Retry(ctx, entry, p.cfg.RetryDelayDays)
	if err != nil {
		p.alert(entry, rec, fmt.Sprintf("retry failed: %v", err))
		return fmt.Errorf("retry entry %s: %v", entry.ID, err)
	}

	processed, err := p.record(ctx, entry, rec, settlement.KindSoft, true)
	if err != nil {
		return err
	}
	if !processed {
		sum.Duplicates++
		return nil
	}
	sum.Processed++
	sum.Retries++
	p.returned(ctx, entry, rec)

	p.logger.Log(
		"returns", "retrying soft return",
		"code", rec.Code, "entryID", entry.ID, "retryID", retry.ID,
		"attempt", retry.RetryCount, "effectiveDate", retry.EffectiveDate.Format("2006-01-02"))
	return nil
}

func (p *Processor) hardReturn(ctx context.Context, entry *settlement.Entry, rec Record, sum *Summary, reason string) error {
	processed, err := p.record(ctx, entry, rec, settlement.KindHard, true)
	if err != nil {
		return err
	}
	if !processed {
		sum.Duplicates++
		return nil
	}
	sum.Processed++
	sum.HardReturns++
	p.returned(ctx, entry, rec)
	p.alert(entry, rec, reason)
	return nil
}

func (p *Processor) returned(ctx context.Context, entry *settlement.Entry, rec Record) {
	p.logger.Log("returns", "entry returned", "code", rec.Code, "entryID", entry.ID, "transactionID", entry.TransactionID)
	p.publish(ctx, events.New(events.EntryReturned, entry.ID, map[string]string{
		"code":          rec.Code,
		"transactionID": entry.TransactionID,
		"retryCount":    strconv.Itoa(entry.RetryCount),
	}))
}

func (p *Processor) alert(entry *settlement.Entry, rec Record, reason string) {
	if p.alerts == nil {
		return
	}
	subject := fmt.Sprintf("ACH entry %s returned with %s", entry.ID, rec.Code)
	if code := ach.LookupReturnCode(rec.Code); code != nil {
		subject = fmt.Sprintf("%s (%s)", subject, code.Reason)
	}
	body := fmt.Sprintf("transaction %s for %s, account ending %s", entry.TransactionID, money.FormatCents(entry.Amount), entry.AccountLastFour)
	if reason != "" {
		body += "\n" + reason
	}
	err := p.alerts.Critical(&notify.Message{
		Topic:   notify.Return,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		p.logger.Log("returns", "problem sending return alert", "entryID", entry.ID, "error", err)
	}
}

func (p *Processor) publish(ctx context.Context, evt events.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, evt); err != nil {
		p.logger.Log("returns", "problem publishing event", "type", evt.Type, "error", err)
	}
}
