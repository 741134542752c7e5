// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"testing"
	"time"
)

func TestStringKeeper(t *testing.T) *StringKeeper {
	t.Helper()

	keeper, err := OpenLocal("")
	if err != nil {
		t.Fatal(err)
	}
	str := NewStringKeeper(keeper, 5*time.Second)
	t.Cleanup(func() { str.Close() })
	return str
}
