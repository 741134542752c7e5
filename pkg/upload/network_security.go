// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"fmt"
	"net"
	"strings"
)

// rejectOutboundIPRange returns an error unless hostname resolves to an address
// inside allowedIPs. An empty allowedIPs only requires hostname to resolve.
func rejectOutboundIPRange(allowedIPs []string, hostname string) error {
	if strings.Contains(hostname, ":") {
		host, _, err := net.SplitHostPort(hostname)
		if err != nil {
			return err
		}
		hostname = host
	}
	addrs, err := net.LookupIP(hostname)
	if len(addrs) == 0 || err != nil {
		return fmt.Errorf("unable to resolve (found %d) %s: %v", len(addrs), hostname, err)
	}
	if len(allowedIPs) == 0 {
		return nil
	}
	for i := range allowedIPs {
		allowed := strings.TrimSpace(allowedIPs[i])
		if strings.Contains(allowed, "/") {
			_, ipnet, err := net.ParseCIDR(allowed)
			if err != nil {
				return err
			}
			for j := range addrs {
				if ipnet.Contains(addrs[j]) {
					return nil
				}
			}
			continue
		}
		ip := net.ParseIP(allowed)
		if ip == nil {
			return fmt.Errorf("invalid IP address %q", allowed)
		}
		for j := range addrs {
			if ip.Equal(addrs[j]) {
				return nil
			}
		}
	}
	return fmt.Errorf("%s is not allowed", addrs[0].String())
}
