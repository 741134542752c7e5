// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package settlement

import (
	"errors"
	"testing"
)

func TestEntryStatus__CanTransition(t *testing.T) {
	cases := []struct {
		from, to EntryStatus
		allowed  bool
	}{
		{EntryPending, EntrySubmitted, true},
		{EntryPending, EntrySettled, false},
		{EntrySubmitted, EntrySettled, true},
		{EntrySubmitted, EntryReturned, true},
		{EntrySettled, EntryReturned, true},
		{EntryReturned, EntrySubmitted, false},
		{EntryReturned, EntryReturned, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v", tc.from, tc.to, got)
		}
	}
	if !EntryReturned.Terminal() || EntrySubmitted.Terminal() {
		t.Error("unexpected terminal statuses")
	}
}

func TestBatchStatus__CanTransition(t *testing.T) {
	cases := []struct {
		from, to BatchStatus
		allowed  bool
	}{
		{BatchPending, BatchReady, true},
		{BatchPending, BatchCancelled, true},
		{BatchReady, BatchCancelled, true},
		{BatchReady, BatchGenerated, true},
		{BatchGenerated, BatchCancelled, false},
		{BatchGenerated, BatchPending, false},
		{BatchSubmitted, BatchAccepted, true},
		{BatchAccepted, BatchSettled, true},
		{BatchCancelled, BatchPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v", tc.from, tc.to, got)
		}
	}
}

func TestFileStatus__CanTransition(t *testing.T) {
	cases := []struct {
		from, to FileStatus
		allowed  bool
	}{
		{FilePending, FileGenerated, true},
		{FileGenerated, FileSubmitted, true},
		{FileGenerated, FileFailed, true},
		{FileFailed, FileSubmitted, true},
		{FileSubmitted, FileAccepted, true},
		{FileSubmitted, FileRejected, true},
		{FileAccepted, FileProcessing, true},
		{FileProcessing, FileCompleted, true},
		{FileRejected, FileSubmitted, false},
		{FileCompleted, FileProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v", tc.from, tc.to, got)
		}
	}
}

func TestTransitionError(t *testing.T) {
	err := transitionError("file", FileRejected, FileSubmitted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCorrection__Empty(t *testing.T) {
	if !(Correction{}).Empty() {
		t.Error("expected empty")
	}
	if (Correction{AccountNumber: "1"}).Empty() {
		t.Error("expected non-empty")
	}
}
