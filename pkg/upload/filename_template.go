// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const DefaultFilenameTemplate = `{{ date "20060102" }}-{{ .RoutingNumber }}-{{ .Seq }}.ach`

type FilenameData struct {
	RoutingNumber string

	// Seq is the file's position among today's generated files, see RoundSequenceNumber
	Seq string

	// Now is the generation time, zero means time.Now()
	Now time.Time
}

func filenameFunctions(now time.Time) template.FuncMap {
	if now.IsZero() {
		now = time.Now()
	}
	return map[string]interface{}{
		"date": func(pattern string) string {
			return now.Format(pattern)
		},
		"env": func(name string) string {
			return os.Getenv(name)
		},
	}
}

// FilenameTemplate returns raw or the default template when raw is empty.
func FilenameTemplate(raw string) string {
	if raw == "" {
		return DefaultFilenameTemplate
	}
	return raw
}

func RenderACHFilename(raw string, data FilenameData) (string, error) {
	t, err := template.New(data.RoutingNumber).Funcs(filenameFunctions(data.Now)).Parse(FilenameTemplate(raw))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateTemplate renders raw against sample data.
func ValidateTemplate(raw string) error {
	_, err := RenderACHFilename(raw, FilenameData{
		RoutingNumber: "987654320",
		Seq:           "1",
	})
	return err
}

// RoundSequenceNumber converts a sequence (int) to it's string value, which means 0-9 followed by A-Z
func RoundSequenceNumber(seq int) string {
	if seq < 10 {
		return fmt.Sprintf("%d", seq)
	}
	// 65 is ASCII/UTF-8 value for A
	return string(rune(65 + seq - 10)) // A, B, ...
}

// ACHFilenameSeq returns the sequence number from a given achFilename
// A sequence number of 0 indicates an error
func ACHFilenameSeq(filename string) int {
	replacer := strings.NewReplacer(".ach", "")
	parts := strings.Split(replacer.Replace(filename), "-")

	// Traverse the filename from right to left looking for the sequence number.
	for i := len(parts) - 1; i >= 0; i-- {
		if len(parts[i]) == 1 && parts[i] >= "A" && parts[i] <= "Z" {
			return int(parts[i][0]) - 65 + 10 // A=65 in ASCII/UTF-8
		}
		// Routing numbers are at least 100,000,000 so anything smaller is a sequence number
		if n, err := strconv.Atoi(parts[i]); err == nil && (n > 0 && n < 10000000) {
			return n
		}
	}
	return 0
}
