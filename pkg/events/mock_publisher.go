// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"sync"
)

type MockPublisher struct {
	Err error

	mu     sync.Mutex
	events []Event
}

func (pub *MockPublisher) Publish(_ context.Context, evt Event) error {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	pub.events = append(pub.events, evt)
	return pub.Err
}

func (pub *MockPublisher) Shutdown(_ context.Context) error {
	return nil
}

func (pub *MockPublisher) Events() []Event {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	return append([]Event(nil), pub.events...)
}

// Types returns the type of each published event in order.
func (pub *MockPublisher) Types() []Type {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	var out []Type
	for i := range pub.events {
		out = append(out, pub.events[i].Type)
	}
	return out
}
