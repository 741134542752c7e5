// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"strconv"
	"strings"
)

// Or returns the first option that isn't blank, trimmed of surrounding space.
// Config lookups use it to let environment variables override file values.
func Or(options ...string) string {
	for _, opt := range options {
		if opt = strings.TrimSpace(opt); opt != "" {
			return opt
		}
	}
	return ""
}

// Yes parses boolean-ish query and config values like "yes", "true" or "1".
func Yes(in string) bool {
	in = strings.ToLower(strings.TrimSpace(in))
	if in == "yes" || in == "y" {
		return true
	}
	v, _ := strconv.ParseBool(in)
	return v
}
