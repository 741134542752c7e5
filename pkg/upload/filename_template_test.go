// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"os"
	"testing"
	"time"
)

func TestFilenameTemplate(t *testing.T) {
	now := time.Date(2020, time.October, 14, 16, 30, 0, 0, time.UTC)

	filename, err := RenderACHFilename("", FilenameData{
		RoutingNumber: "987654320",
		Seq:           RoundSequenceNumber(2),
		Now:           now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if filename != "20201014-987654320-2.ach" {
		t.Errorf("filename=%s", filename)
	}

	filename, err = RenderACHFilename(`FB{{ date "060102" }}.ach`, FilenameData{
		RoutingNumber: "987654320", // not included in template
		Now:           now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if filename != "FB201014.ach" {
		t.Errorf("filename=%s", filename)
	}
}

func TestFilenameTemplate__functions(t *testing.T) {
	cases := []struct {
		tmpl, expected string
		data           FilenameData
	}{
		{
			tmpl:     "static-template",
			expected: "static-template",
		},
		{
			tmpl:     `{{ env "PATH" }}`,
			expected: os.Getenv("PATH"),
		},
		{
			tmpl:     `{{ date "2006-01-02" }}`,
			expected: time.Now().Format("2006-01-02"),
		},
	}
	for i := range cases {
		res, err := RenderACHFilename(cases[i].tmpl, cases[i].data)
		if err != nil {
			t.Errorf("#%d: %v", i, err)
		}
		if cases[i].expected != res {
			t.Errorf("#%d: %s", i, res)
		}
	}
}

func TestFilenameTemplate__RoundSequenceNumber(t *testing.T) {
	if n := RoundSequenceNumber(0); n != "0" {
		t.Errorf("got %s", n)
	}
	if n := RoundSequenceNumber(10); n != "A" {
		t.Errorf("got %s", n)
	}
}

func TestFilenameTemplate__ValidateTemplate(t *testing.T) {
	if err := ValidateTemplate(DefaultFilenameTemplate); err != nil {
		t.Fatal(err)
	}
	if err := ValidateTemplate("{{ blarg }}"); err == nil {
		t.Error("expected error")
	}
	if err := ValidateTemplate("{{ .Invalid }"); err == nil {
		t.Error("expected error")
	}
}

func TestFilenameTemplate__ACHFilenameSeq(t *testing.T) {
	cases := map[string]int{
		"20201014-987654320-1.ach": 1,
		"20201014-987654320-A.ach": 10,
		"20201014-987654320.ach":   0,
		"invalid.ach":              0,
	}
	for filename, expected := range cases {
		if n := ACHFilenameSeq(filename); n != expected {
			t.Errorf("%s: n=%d", filename, n)
		}
	}
}
