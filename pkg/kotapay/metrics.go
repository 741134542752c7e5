// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	clientErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "kotapay_client_errors",
		Help: "Counter of errors with the Kotapay API",
	}, []string{"instance", "operation"})
)

func (c *HTTPClient) trackError(operation string) {
	host := c.Hostname()
	if host == "" {
		host = "N/A"
	}
	clientErrors.With("instance", host, "operation", operation).Add(1)
}
