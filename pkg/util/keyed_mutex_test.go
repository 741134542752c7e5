// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"sync"
	"testing"
)

func TestKeyedMutex(t *testing.T) {
	var km KeyedMutex
	var wg sync.WaitGroup

	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter=%d", counter)
	}
	if len(km.locks) != 0 {
		t.Errorf("leaked %d locks", len(km.locks))
	}
}

func TestKeyedMutex__TryLock(t *testing.T) {
	var km KeyedMutex

	unlock, ok := km.TryLock("a")
	if !ok {
		t.Fatal("expected lock")
	}
	if _, ok := km.TryLock("a"); ok {
		t.Fatal("expected a to be held")
	}
	if u, ok := km.TryLock("b"); !ok {
		t.Fatal("expected b to be free")
	} else {
		u()
	}
	unlock()

	if u, ok := km.TryLock("a"); !ok {
		t.Fatal("expected a to be released")
	} else {
		u()
	}
}
