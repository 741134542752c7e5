// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"encoding/json"
	"net/http"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/moov-io/base/admin"
)

// RegisterRoutes adds GET /config to the admin server unless it's disabled.
func RegisterRoutes(svc *admin.Server, cfg *config.Config) {
	if cfg.Admin.DisableConfigEndpoint {
		return
	}
	svc.AddHandler("/config", renderConfig(cfg))
}

// renderConfig writes the running config. Credentials are tagged json:"-" and never render.
func renderConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(cfg)
	}
}
