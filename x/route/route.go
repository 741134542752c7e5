// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	moovhttp "github.com/moov-io/base/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	// Prometheus Metrics
	Histogram = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Histogram representing the http response durations",
	}, []string{"route"})
)

type Responder struct {
	XRequestID string

	logger  log.Logger
	request *http.Request
	writer  *moovhttp.ResponseWriter
}

func NewResponder(logger log.Logger, w http.ResponseWriter, r *http.Request) *Responder {
	name := fmt.Sprintf("%s-%s", strings.ToLower(r.Method), CleanPath(r.URL.Path))
	return &Responder{
		XRequestID: moovhttp.GetRequestID(r),
		logger:     logger,
		request:    r,
		writer:     moovhttp.Wrap(logger, Histogram.With("route", name), w, r),
	}
}

func (r *Responder) Log(kvpairs ...interface{}) {
	if r == nil || r.logger == nil {
		return
	}
	args := []interface{}{
		"requestID", r.XRequestID,
		"route", CleanPath(r.request.URL.Path),
	}
	r.logger.Log(append(args, kvpairs...)...)
}

func (r *Responder) Respond(fn func(http.ResponseWriter)) {
	if r == nil {
		return
	}
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	fn(r.writer)
}

// JSON writes v with the given status code.
func (r *Responder) JSON(status int, v interface{}) {
	r.Respond(func(w http.ResponseWriter) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	})
}

func (r *Responder) Problem(err error) {
	if r == nil {
		return
	}
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	moovhttp.Problem(r.writer, err)
}

// ProblemStatus writes err with a status code other than 400.
func (r *Responder) ProblemStatus(status int, err error) {
	if r == nil {
		return
	}
	r.JSON(status, map[string]string{"error": err.Error()})
}

// ReadPathID returns the named path variable, or an empty string when the route doesn't define it.
func ReadPathID(name string, r *http.Request) string {
	return mux.Vars(r)[name]
}

var baseIdRegex = regexp.MustCompile(`([a-f0-9]{40})`)

// CleanPath takes a URL path and formats it for Prometheus metrics
//
// This method replaces /'s with -'s and strips out moov/base.ID() values from URL path slugs.
func CleanPath(path string) string {
	parts := strings.Split(path, "/")
	var out []string
	for i := range parts {
		if parts[i] == "" || baseIdRegex.MatchString(parts[i]) {
			continue // assume it's a moov/base.ID() value
		}
		out = append(out, parts[i])
	}
	return strings.Join(out, "-")
}
