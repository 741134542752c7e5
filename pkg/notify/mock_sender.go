// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"sync"
)

type MockSender struct {
	Err error

	mu       sync.Mutex
	infos    []*Message
	critical []*Message
}

func (s *MockSender) Info(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, msg)
	return s.Err
}

func (s *MockSender) Critical(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.critical = append(s.critical, msg)
	return s.Err
}

func (s *MockSender) Infos() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.infos...)
}

func (s *MockSender) Criticals() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.critical...)
}
