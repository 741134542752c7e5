// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/audittrail"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/events"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/notify"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/upload"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

type UploadOptions struct {
	// TestMode sends the file to the processor's sandbox path without changing any status
	TestMode bool
}

// Uploader submits generated files and applies the processor's acknowledgements.
type Uploader struct {
	logger  log.Logger
	cfg     config.Upload
	achCfg  config.ACH
	repo    *SQLRepository
	agent   upload.Agent
	storage audittrail.Storage
	sender  notify.Sender
	events  events.Publisher

	now func() time.Time
}

func NewUploader(
	logger log.Logger,
	cfg config.Upload,
	achCfg config.ACH,
	repo *SQLRepository,
	agent upload.Agent,
	storage audittrail.Storage,
	sender notify.Sender,
	pub events.Publisher,
) *Uploader {
	return &Uploader{
		logger:  logger,
		cfg:     cfg,
		achCfg:  achCfg,
		repo:    repo,
		agent:   agent,
		storage: storage,
		sender:  sender,
		events:  pub,
		now:     time.Now,
	}
}

func (u *Uploader) contents(ctx context.Context, f *File) ([]byte, error) {
	if len(f.Contents) > 0 {
		return f.Contents, nil
	}
	bs, err := u.storage.GetFile(ctx, f.Filename, f.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("file %s contents: %v", f.ID, err)
	}
	return bs, nil
}

// Upload submits a generated or failed file. Uploading a file that's already been
// submitted is a no-op.
func (u *Uploader) Upload(ctx context.Context, fileID string, opts UploadOptions) (*File, error) {
	f, err := u.repo.getFile(ctx, u.repo.db, fileID)
	if err != nil {
		return nil, err
	}
	switch f.Status {
	case FileSubmitted, FileAccepted, FileProcessing, FileCompleted:
		if !opts.TestMode {
			return f, nil
		}
	case FileGenerated, FileFailed:
	default:
		return nil, transitionError("file", f.Status, FileSubmitted)
	}

	contents, err := u.contents(ctx, f)
	if err != nil {
		return nil, err
	}
	receipt, err := u.agent.UploadFile(ctx, upload.File{
		ID:       f.ID,
		Filename: f.Filename,
		Contents: ioutil.NopCloser(bytes.NewReader(contents)),
		TestMode: opts.TestMode,
	})
	if opts.TestMode {
		if err != nil {
			fileUploads.With("status", "test_failure").Add(1)
			return nil, fmt.Errorf("test upload of %s: %v", f.Filename, err)
		}
		fileUploads.With("status", "test").Add(1)
		u.logger.Log("uploader", "test mode upload", "fileID", f.ID, "filename", f.Filename, "reference", receipt.Reference)
		return f, nil
	}
	if err != nil {
		return nil, u.failed(ctx, f, err)
	}

	now := u.now().UTC()
	err = u.repo.tx(ctx, func(tx *sql.Tx) error {
		if err := u.repo.markFileSubmitted(ctx, tx, f, receipt.Reference, now); err != nil {
			return err
		}
		batches, err := u.repo.fileBatches(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		for _, b := range batches {
			if err := u.repo.setBatchStatus(ctx, tx, b.ID, b.Status, BatchSubmitted); err != nil {
				return err
			}
			if _, err := u.repo.setBatchEntriesStatus(ctx, tx, b.ID, EntryPending, EntrySubmitted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// the processor has the file, only our bookkeeping failed
		u.critical(&notify.Message{
			Topic:    notify.Upload,
			Subject:  fmt.Sprintf("uploaded %s but failed to record submission", f.Filename),
			Body:     err.Error(),
			Filename: f.Filename,
		})
		return nil, fmt.Errorf("record submission of %s: %v", f.ID, err)
	}

	fileUploads.With("status", "success").Add(1)
	u.logger.Log("uploader", "uploaded file", "fileID", f.ID, "filename", f.Filename, "reference", receipt.Reference)

	u.info(&notify.Message{
		Topic:    notify.Upload,
		Filename: f.Filename,
		Hostname: u.agent.Hostname(),
	})
	u.publish(ctx, events.New(events.FileSubmitted, f.ID, map[string]string{
		"filename":  f.Filename,
		"reference": receipt.Reference,
	}))

	return u.repo.getFile(ctx, u.repo.db, f.ID)
}

func (u *Uploader) failed(ctx context.Context, f *File, cause error) error {
	fileUploads.With("status", "failure").Add(1)
	u.logger.Log("uploader", "upload failed", "fileID", f.ID, "filename", f.Filename, "error", cause)

	if err := u.repo.markFileFailed(ctx, u.repo.db, f); err != nil {
		u.logger.Log("uploader", "problem marking file failed", "fileID", f.ID, "error", err)
	}
	u.critical(&notify.Message{
		Topic:    notify.Upload,
		Body:     cause.Error(),
		Filename: f.Filename,
		Hostname: u.agent.Hostname(),
	})
	return fmt.Errorf("upload %s: %w", f.Filename, cause)
}

// UploadPending retries every generated or failed file with attempts remaining.
func (u *Uploader) UploadPending(ctx context.Context) (int, error) {
	files, err := u.repo.listFiles(ctx, u.repo.db, FileGenerated, FileFailed)
	if err != nil {
		return 0, err
	}
	var el base.ErrorList
	uploaded := 0
	for _, f := range files {
		if f.UploadAttempts >= u.cfg.Attempts() {
			continue
		}
		if _, err := u.Upload(ctx, f.ID, UploadOptions{}); err != nil {
			el.Add(err)
			continue
		}
		uploaded++
	}
	if el.Empty() {
		return uploaded, nil
	}
	return uploaded, el
}

// FileAck is the processor's verdict on a submitted file.
type FileAck struct {
	Reference string
	Filename  string
	Accepted  bool
	Reason    string
}

// Acknowledge applies a FileAck. Batches of a rejected file stay as they are.
func (u *Uploader) Acknowledge(ctx context.Context, ack FileAck) (*File, error) {
	f, err := u.repo.getFileByReference(ctx, u.repo.db, ack.Reference, ack.Filename)
	if err != nil {
		return nil, fmt.Errorf("acknowledgement for %s/%s: %w", ack.Reference, ack.Filename, err)
	}
	if f.Status != FileSubmitted {
		return f, nil // already acknowledged
	}

	if !ack.Accepted {
		if err := u.repo.setFileStatus(ctx, u.repo.db, f, FileRejected, ack.Reason); err != nil {
			return nil, err
		}
		u.logger.Log("uploader", "file rejected", "fileID", f.ID, "filename", f.Filename, "reason", ack.Reason)
		u.critical(&notify.Message{
			Topic:    notify.Upload,
			Subject:  fmt.Sprintf("%s was rejected by the processor", f.Filename),
			Body:     ack.Reason,
			Filename: f.Filename,
		})
		u.publish(ctx, events.New(events.FileRejected, f.ID, map[string]string{"reason": ack.Reason}))
		return u.repo.getFile(ctx, u.repo.db, f.ID)
	}

	err = u.repo.tx(ctx, func(tx *sql.Tx) error {
		if err := u.repo.setFileStatus(ctx, tx, f, FileAccepted, ""); err != nil {
			return err
		}
		batches, err := u.repo.fileBatches(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		for _, b := range batches {
			if err := u.repo.setBatchStatus(ctx, tx, b.ID, b.Status, BatchAccepted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.logger.Log("uploader", "file accepted", "fileID", f.ID, "filename", f.Filename)
	u.publish(ctx, events.New(events.FileAccepted, f.ID, nil))
	return u.repo.getFile(ctx, u.repo.db, f.ID)
}

func (u *Uploader) info(msg *notify.Message) {
	if u.sender == nil {
		return
	}
	if err := u.sender.Info(msg); err != nil {
		u.logger.Log("uploader", "problem sending notification", "error", err)
	}
}

func (u *Uploader) critical(msg *notify.Message) {
	if u.sender == nil {
		return
	}
	if err := u.sender.Critical(msg); err != nil {
		u.logger.Log("uploader", "problem sending alert", "error", err)
	}
}

func (u *Uploader) publish(ctx context.Context, evt events.Event) {
	if u.events == nil {
		return
	}
	if err := u.events.Publish(ctx, evt); err != nil {
		u.logger.Log("uploader", "problem publishing event", "type", evt.Type, "error", err)
	}
}
