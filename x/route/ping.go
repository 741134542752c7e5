// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"fmt"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

// Check reports whether a dependency like the database is reachable.
type Check func() error

// PingRoute responds PONG once every check passes and 503 otherwise.
func PingRoute(logger log.Logger, r *mux.Router, checks ...Check) {
	r.Methods("GET").Path("/ping").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for i := range checks {
			if err := checks[i](); err != nil {
				logger.Log("ping", fmt.Sprintf("check failed: %v", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "unhealthy: %v", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("PONG"))
	})
}
