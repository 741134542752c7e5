// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"

	"github.com/go-kit/kit/log"
)

type File struct {
	// ID is the settlement file id, used as the idempotency key on REST uploads
	ID       string
	Filename string
	Contents io.ReadCloser

	// TestMode uploads are validated by the processor but never originated
	TestMode bool
}

func (f File) Close() error {
	if f.Contents == nil {
		return nil
	}
	return f.Contents.Close()
}

// Receipt is what the processor handed back for an uploaded file.
type Receipt struct {
	Reference string
	Status    string
}

// Agent represents an interface for submitting NACHA files to the processor and
// retrieving the return files it leaves for us.
type Agent interface {
	UploadFile(ctx context.Context, f File) (*Receipt, error)
	GetReturnFiles(ctx context.Context) ([]File, error)
	Delete(path string) error

	Hostname() string
	Ping() error
	Close() error
}

func New(logger log.Logger, cfg config.Upload, client kotapay.Client) (Agent, error) {
	switch strings.ToLower(cfg.Agent) {
	case "", "kotapay":
		return newKotapayAgent(logger, client)

	case "sftp":
		return newSFTPTransferAgent(logger, cfg)

	default:
		return nil, fmt.Errorf("upload: unknown agent '%s'", cfg.Agent)
	}
}
