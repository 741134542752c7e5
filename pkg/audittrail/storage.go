// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package audittrail

import (
	"context"
	"errors"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
)

var ErrNotFound = errors.New("audittrail: file not found")

// Storage is an interface for saving and encrypting generated NACHA files for
// records retention. Files are addressed by their name and generation time.
type Storage interface {
	SaveFile(ctx context.Context, filename string, generatedAt time.Time, contents []byte) error
	GetFile(ctx context.Context, filename string, generatedAt time.Time) ([]byte, error)

	// DeleteFile removes a saved file. Deleting a missing file is not an error.
	DeleteFile(ctx context.Context, filename string, generatedAt time.Time) error

	Close() error
}

// NewStorage opens the configured bucket. keeper encrypts files before they're
// written, a nil keeper stores them as-is.
func NewStorage(cfg *config.AuditTrail, keeper *secrets.StringKeeper) (Storage, error) {
	if cfg == nil {
		return NewMockStorage(), nil
	}
	if cfg.BucketURI != "" {
		return newBlobStorage(cfg, keeper)
	}
	return nil, errors.New("unknown storage config")
}
