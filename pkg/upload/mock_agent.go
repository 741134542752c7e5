// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"context"
	"io/ioutil"
	"sync"
)

type MockAgent struct {
	ReturnFiles  []File
	UploadedFile *File    // non-nil on file upload
	Uploads      int      // count of successful uploads
	DeletedFiles []string // filepaths of deleted files
	Reference    string
	mu           sync.RWMutex // protects all fields

	Err error
}

func (a *MockAgent) UploadFile(_ context.Context, f File) (*Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Err != nil {
		f.Close()
		return nil, a.Err
	}

	// read f.Contents before callers close the underlying reader
	bs, _ := ioutil.ReadAll(f.Contents)
	f.Close()
	a.UploadedFile = &f
	a.UploadedFile.Contents = ioutil.NopCloser(bytes.NewReader(bs))
	a.Uploads++

	ref := a.Reference
	if ref == "" {
		ref = "mock-" + f.ID
	}
	return &Receipt{Reference: ref, Status: "received"}, nil
}

func (a *MockAgent) GetReturnFiles(_ context.Context) ([]File, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.ReturnFiles, a.Err
}

func (a *MockAgent) Delete(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.DeletedFiles = append(a.DeletedFiles, path)
	return nil
}

func (a *MockAgent) Hostname() string {
	return "mock.example.com"
}

func (a *MockAgent) Ping() error {
	return a.Err
}

func (a *MockAgent) Close() error {
	return nil
}
