// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package audittrail

import (
	"context"
	"fmt"
	"io/ioutil"
	"path"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// blobStorage implements Storage with gocloud.dev/blob which allows
// local directories or in-memory buckets.
type blobStorage struct {
	bucket   *blob.Bucket
	basePath string
	keeper   *secrets.StringKeeper
}

func newBlobStorage(cfg *config.AuditTrail, keeper *secrets.StringKeeper) (*blobStorage, error) {
	bucket, err := blob.OpenBucket(context.Background(), cfg.BucketURI)
	if err != nil {
		return nil, err
	}
	base := cfg.BasePath
	if base == "" {
		base = "audit-trail"
	}
	return &blobStorage{
		bucket:   bucket,
		basePath: base,
		keeper:   keeper,
	}, nil
}

func (bs *blobStorage) Close() error {
	if bs == nil {
		return nil
	}
	return bs.bucket.Close()
}

// key puts files in a sub-path of the generation date, yyyy-mm-dd
func (bs *blobStorage) key(filename string, generatedAt time.Time) string {
	return path.Join(bs.basePath, generatedAt.UTC().Format("2006-01-02"), path.Base(filename))
}

func (bs *blobStorage) SaveFile(ctx context.Context, filename string, generatedAt time.Time, contents []byte) error {
	if bs.keeper != nil {
		encrypted, err := bs.keeper.Encrypt(ctx, contents)
		if err != nil {
			return fmt.Errorf("audittrail: encrypt %s: %v", filename, err)
		}
		contents = encrypted
	}

	w, err := bs.bucket.NewWriter(ctx, bs.key(filename, generatedAt), nil)
	if err != nil {
		return err
	}
	_, copyErr := w.Write(contents)
	closeErr := w.Close()

	if copyErr != nil || closeErr != nil {
		return fmt.Errorf("audittrail: copyErr=%v closeErr=%v", copyErr, closeErr)
	}
	return nil
}

func (bs *blobStorage) GetFile(ctx context.Context, filename string, generatedAt time.Time) ([]byte, error) {
	r, err := bs.bucket.NewReader(ctx, bs.key(filename, generatedAt), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer r.Close()

	contents, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if bs.keeper != nil {
		return bs.keeper.Decrypt(ctx, contents)
	}
	return contents, nil
}

func (bs *blobStorage) DeleteFile(ctx context.Context, filename string, generatedAt time.Time) error {
	err := bs.bucket.Delete(ctx, bs.key(filename, generatedAt))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("audittrail: delete %s: %v", filename, err)
	}
	return nil
}
