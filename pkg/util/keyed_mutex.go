// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"sync"
)

// KeyedMutex serializes callers sharing a key while letting distinct keys proceed.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the func which releases it.
func (km *KeyedMutex) Lock(key string) func() {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	l, ok := km.locks[key]
	if !ok {
		l = &keyedLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

// TryLock returns false instead of blocking when key is held.
func (km *KeyedMutex) TryLock(key string) (func(), bool) {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	if _, exists := km.locks[key]; exists {
		return nil, false
	}
	l := &keyedLock{refs: 1}
	l.mu.Lock()
	km.locks[key] = l
	return func() {
		l.mu.Unlock()

		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}, true
}
