// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/achx"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/audittrail"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/upload"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

const traceSequence = "trace"

// Generator freezes eligible batches into one NACHA file at a time.
type Generator struct {
	logger   log.Logger
	cfg      config.ACH
	odfi     config.ODFI
	options  achx.Options
	filename string

	repo    *SQLRepository
	keeper  *secrets.StringKeeper
	storage audittrail.Storage
	events  events.Publisher

	mu  sync.Mutex
	now func() time.Time
}

func NewGenerator(
	logger log.Logger,
	odfi config.ODFI,
	cfg config.ACH,
	repo *SQLRepository,
	keeper *secrets.StringKeeper,
	storage audittrail.Storage,
	pub events.Publisher,
) (*Generator, error) {
	options, err := achx.NewOptions(odfi, cfg)
	if err != nil {
		return nil, err
	}
	tmpl := upload.FilenameTemplate(cfg.FilenameTemplate)
	if err := upload.ValidateTemplate(tmpl); err != nil {
		return nil, fmt.Errorf("filename template: %v", err)
	}
	return &Generator{
		logger:   logger,
		cfg:      cfg,
		odfi:     odfi,
		options:  options,
		filename: tmpl,
		repo:     repo,
		keeper:   keeper,
		storage:  storage,
		events:   pub,
		now:      time.Now,
	}, nil
}

type pendingTrace struct {
	entryID string
	trace   string
}

// Generate builds a file from up to MaxBatchesPerFile eligible batches. Either every selected
// batch is linked to the new file or nothing is changed.
func (g *Generator) Generate(ctx context.Context) (*File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	var file *File
	var archived bool

	err := g.repo.tx(ctx, func(tx *sql.Tx) error {
		batches, err := g.repo.eligibleBatches(ctx, tx, g.cfg.MaxBatchesPerFile)
		if err != nil {
			return fmt.Errorf("eligible batches: %v", err)
		}
		if len(batches) == 0 {
			return ErrNoEligibleBatches
		}

		built, err := g.loadBatches(ctx, tx, batches)
		if err != nil {
			return err
		}
		traces, err := g.assignTraceNumbers(ctx, tx, built)
		if err != nil {
			return err
		}

		local := now.In(g.options.Location)
		start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location()).UTC()
		generatedToday, err := g.repo.countFilesGenerated(ctx, tx, start, start.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("count files: %v", err)
		}
		modifier, err := achx.FileIDModifier(generatedToday)
		if err != nil {
			return err
		}

		fileID := base.ID()
		achFile, err := achx.ConstructFile(fileID, g.options, built, modifier, now)
		if err != nil {
			return fmt.Errorf("construct file: %v", err)
		}
		totals, err := achx.ComputeTotals(g.options, built)
		if err != nil {
			return err
		}
		if err := totals.Match(achFile); err != nil {
			return fmt.Errorf("%w: %v", ErrAggregateMismatch, err)
		}
		contents, err := achx.Render(achFile)
		if err != nil {
			return err
		}

		filename, err := upload.RenderACHFilename(g.filename, upload.FilenameData{
			RoutingNumber: g.odfi.RoutingNumber,
			Seq:           upload.RoundSequenceNumber(generatedToday + 1),
			Now:           local,
		})
		if err != nil {
			return fmt.Errorf("filename: %v", err)
		}
		file = &File{
			ID:                fileID,
			Status:            FileGenerated,
			Filename:          filename,
			BatchCount:        totals.BatchCount,
			EntryAddendaCount: totals.EntryAddendaCount,
			EntryHash:         totals.EntryHash,
			TotalDebit:        totals.TotalDebit,
			TotalCredit:       totals.TotalCredit,
			Contents:          contents,
			GeneratedAt:       now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := g.repo.insertFile(ctx, tx, file); err != nil {
			return fmt.Errorf("insert file: %v", err)
		}
		for i := range batches {
			if err := g.repo.freezeBatch(ctx, tx, batches[i], fileID, built[i].Number); err != nil {
				return err
			}
		}
		for i := range traces {
			if err := g.repo.setEntryTrace(ctx, tx, traces[i].entryID, traces[i].trace); err != nil {
				return err
			}
		}

		// archived last so only the commit can fail after the blob exists
		if err := g.storage.SaveFile(ctx, filename, now, contents); err != nil {
			return fmt.Errorf("audit trail: %v", err)
		}
		archived = true
		return nil
	})
	if err != nil {
		if archived {
			g.discardArchive(file)
		}
		if !errors.Is(err, ErrNoEligibleBatches) {
			filesGenerated.With("status", "failure").Add(1)
			g.logger.Log("generator", "file generation failed", "error", err)
		}
		return nil, err
	}

	filesGenerated.With("status", "success").Add(1)
	g.logger.Log(
		"generator", "generated file",
		"fileID", file.ID, "filename", file.Filename,
		"batches", file.BatchCount, "entries", file.EntryAddendaCount)

	g.publish(ctx, events.New(events.FileGenerated, file.ID, map[string]string{
		"filename":   file.Filename,
		"batches":    strconv.Itoa(file.BatchCount),
		"totalDebit": strconv.FormatInt(file.TotalDebit, 10),
	}))

	return file, nil
}

// loadBatches decrypts each batch's entries and checks them against the stored totals.
func (g *Generator) loadBatches(ctx context.Context, tx *sql.Tx, batches []*Batch) ([]achx.Batch, error) {
	out := make([]achx.Batch, len(batches))
	for i, b := range batches {
		entries, err := g.repo.listEntries(ctx, tx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("batch %s entries: %v", b.ID, err)
		}
		if err := checkAggregates(b, entries); err != nil {
			return nil, err
		}

		out[i] = achx.Batch{
			ID:               b.ID,
			Number:           i + 1,
			SECCode:          b.SECCode,
			EntryDescription: util.Or(b.EntryDescription, g.cfg.EntryDescription),
			EffectiveDate:    b.EffectiveDate,
		}
		for _, e := range entries {
			if e.TraceNumber != "" {
				return nil, fmt.Errorf("entry %s already has trace number %s", e.ID, e.TraceNumber)
			}
			routing, err := g.keeper.DecryptString(ctx, e.RoutingNumberEncrypted)
			if err != nil {
				return nil, fmt.Errorf("entry %s: decrypt routing number: %v", e.ID, err)
			}
			account, err := g.keeper.DecryptString(ctx, e.AccountNumberEncrypted)
			if err != nil {
				return nil, fmt.Errorf("entry %s: decrypt account number: %v", e.ID, err)
			}
			out[i].Entries = append(out[i].Entries, achx.Entry{
				ID:             e.ID,
				IndividualName: e.IndividualName,
				RoutingNumber:  routing,
				AccountNumber:  account,
				AccountType:    e.AccountType,
				Amount:         e.Amount,
				Identification: util.Or(e.PaymentID, e.ID),
			})
		}
	}
	return out, nil
}

func checkAggregates(b *Batch, entries []*Entry) error {
	var total int64
	for i := range entries {
		if entries[i].Status != EntryPending {
			return fmt.Errorf("%w: batch %s entry %s is %s", ErrAggregateMismatch, b.ID, entries[i].ID, entries[i].Status)
		}
		total += entries[i].Amount
	}
	if len(entries) != b.EntryCount || total != b.DebitTotal {
		return fmt.Errorf("%w: batch %s has %d entries totaling %d, stored %d totaling %d",
			ErrAggregateMismatch, b.ID, len(entries), total, b.EntryCount, b.DebitTotal)
	}
	return nil
}

// assignTraceNumbers reserves one sequence value per entry, and per offset when balancing.
func (g *Generator) assignTraceNumbers(ctx context.Context, tx *sql.Tx, batches []achx.Batch) ([]pendingTrace, error) {
	needed := 0
	for i := range batches {
		needed += len(batches[i].Entries)
		if g.options.BalanceEntries {
			needed++
		}
	}
	seq, err := g.repo.nextSequence(ctx, tx, traceSequence, needed)
	if err != nil {
		return nil, fmt.Errorf("trace sequence: %v", err)
	}

	var traces []pendingTrace
	for i := range batches {
		for j := range batches[i].Entries {
			trace := achx.TraceNumber(g.odfi.RoutingNumber, seq)
			seq++
			if err := g.traceAvailable(ctx, tx, trace); err != nil {
				return nil, err
			}
			batches[i].Entries[j].TraceNumber = trace
			traces = append(traces, pendingTrace{entryID: batches[i].Entries[j].ID, trace: trace})
		}
		if g.options.BalanceEntries {
			batches[i].OffsetTraceNumber = achx.TraceNumber(g.odfi.RoutingNumber, seq)
			seq++
		}
	}
	return traces, nil
}

// traceAvailable fails when a wrapped sequence lands on a trace number an entry already carries.
func (g *Generator) traceAvailable(ctx context.Context, tx *sql.Tx, trace string) error {
	existing, err := g.repo.getEntryByTrace(ctx, tx, trace)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trace lookup: %v", err)
	}
	return fmt.Errorf("%w: %s is assigned to entry %s", ErrTraceNumberInUse, trace, existing.ID)
}

// discardArchive removes a file saved by a transaction that didn't commit.
func (g *Generator) discardArchive(file *File) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFunc()

	if err := g.storage.DeleteFile(ctx, file.Filename, file.GeneratedAt); err != nil {
		g.logger.Log("generator", "problem discarding archived file", "filename", file.Filename, "error", err)
	}
}

func (g *Generator) publish(ctx context.Context, evt events.Event) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(ctx, evt); err != nil {
		g.logger.Log("generator", "problem publishing event", "type", evt.Type, "error", err)
	}
}
