// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package audittrail

import (
	"context"
	"sync"
	"time"
)

type MockStorage struct {
	Err error

	mu    sync.Mutex
	files map[string][]byte
}

func NewMockStorage() *MockStorage {
	return &MockStorage{files: make(map[string][]byte)}
}

func mockKey(filename string, generatedAt time.Time) string {
	return generatedAt.UTC().Format("2006-01-02") + "/" + filename
}

func (s *MockStorage) SaveFile(_ context.Context, filename string, generatedAt time.Time, contents []byte) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[mockKey(filename, generatedAt)] = append([]byte(nil), contents...)
	return nil
}

func (s *MockStorage) GetFile(_ context.Context, filename string, generatedAt time.Time) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.files[mockKey(filename, generatedAt)]
	if !ok {
		return nil, ErrNotFound
	}
	return bs, nil
}

func (s *MockStorage) DeleteFile(_ context.Context, filename string, generatedAt time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, mockKey(filename, generatedAt))
	return nil
}

// Count returns how many files were saved.
func (s *MockStorage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *MockStorage) Close() error {
	return nil
}
