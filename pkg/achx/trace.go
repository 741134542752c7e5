// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package achx

import (
	"fmt"
	"strings"
)

// traceSequenceLimit is where a trace number's 7 digit sequence wraps.
const traceSequenceLimit = 10000000

// TraceNumber combines the ODFI's identification with seq into the 15 digit
// trace number carried on each entry and batch offset.
func TraceNumber(routingNumber string, seq int64) string {
	return fmt.Sprintf("%s%07d", ABA8(routingNumber), seq%traceSequenceLimit)
}

// splitRoutingNumber returns the 8 digit identification and check digit of rtn.
// Routing numbers read back from Kotapay reports can carry a leading space, 0 or 1.
func splitRoutingNumber(rtn string) (string, string) {
	if len(rtn) == 10 {
		rtn = rtn[1:]
	}
	rtn = strings.TrimSpace(rtn)
	switch len(rtn) {
	case 8:
		return rtn, ""
	case 9:
		return rtn[:8], rtn[8:]
	}
	return "", ""
}

// ABA8 returns the RDFI or ODFI identification of a routing number, or an empty
// string when rtn isn't a routing number.
func ABA8(rtn string) string {
	aba8, _ := splitRoutingNumber(rtn)
	return aba8
}

func ABACheckDigit(rtn string) string {
	_, check := splitRoutingNumber(rtn)
	return check
}
