// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/x/route"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base/admin"
)

// ReturnsProcessor downloads and applies acknowledgements, returns and corrections.
type ReturnsProcessor interface {
	Tick(ctx context.Context) error
}

// Settlement holds what the ACH operations routes act on.
type Settlement struct {
	Repo        *settlement.SQLRepository
	Accumulator *settlement.Accumulator
	Generator   *settlement.Generator
	Uploader    *settlement.Uploader
	Cutoff      *settlement.Cutoff
	Returns     ReturnsProcessor
}

// RegisterRoutes will add HTTP handlers for ACH operations to the admin HTTP server
func RegisterRoutes(logger log.Logger, svc *admin.Server, s Settlement) {
	for path, handler := range routes(logger, s) {
		svc.AddHandler(path, handler)
	}
}

func routes(logger log.Logger, s Settlement) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/ach/batches/close":            closeBatches(logger, s),
		"/ach/batches/{batchID}/cancel": cancelBatch(logger, s),
		"/ach/files":                    generateFile(logger, s),
		"/ach/files/{fileID}":           getFile(logger, s),
		"/ach/files/{fileID}/upload":    uploadFile(logger, s),
		"/ach/cutoff":                   runCutoff(logger, s),
		"/ach/returns/process":          processReturns(logger, s),
	}
}

func requireMethod(responder *route.Responder, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	responder.ProblemStatus(http.StatusMethodNotAllowed, fmt.Errorf("unsupported HTTP verb %s", r.Method))
	return false
}

// problem picks the response status from err.
func problem(responder *route.Responder, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		responder.ProblemStatus(http.StatusNotFound, err)
	case errors.Is(err, settlement.ErrInvalidTransition), errors.Is(err, settlement.ErrNoEligibleBatches):
		responder.ProblemStatus(http.StatusConflict, err)
	default:
		responder.Problem(err)
	}
}

func closeBatches(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		n, err := s.Accumulator.CloseBatches(r.Context())
		if err != nil {
			problem(responder, err)
			return
		}
		responder.JSON(http.StatusOK, map[string]int64{"closed": n})
	}
}

func cancelBatch(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		batchID := route.ReadPathID("batchID", r)
		if err := s.Accumulator.CancelBatch(r.Context(), batchID); err != nil {
			problem(responder, err)
			return
		}
		responder.Log("admin", "cancelled batch", "batchID", batchID)
		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

func generateFile(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		f, err := s.Generator.Generate(r.Context())
		if err != nil {
			problem(responder, err)
			return
		}
		responder.Log("admin", "generated file", "fileID", f.ID, "filename", f.Filename)
		responder.JSON(http.StatusCreated, f)
	}
}

type fileResponse struct {
	*settlement.File
	Batches []*settlement.Batch `json:"batches"`
}

func getFile(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "GET") {
			return
		}
		fileID := route.ReadPathID("fileID", r)
		f, err := s.Repo.GetFile(r.Context(), fileID)
		if err != nil {
			problem(responder, err)
			return
		}
		batches, err := s.Repo.FileBatches(r.Context(), fileID)
		if err != nil {
			problem(responder, err)
			return
		}
		responder.JSON(http.StatusOK, fileResponse{File: f, Batches: batches})
	}
}

func uploadFile(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		opts := settlement.UploadOptions{
			TestMode: util.Yes(r.URL.Query().Get("testMode")),
		}
		f, err := s.Uploader.Upload(r.Context(), route.ReadPathID("fileID", r), opts)
		if err != nil {
			problem(responder, err)
			return
		}
		responder.JSON(http.StatusOK, f)
	}
}

func runCutoff(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		sum, err := s.Cutoff.Run(r.Context())
		if err != nil {
			responder.Log("admin", "cutoff finished with errors", "error", err)
			responder.JSON(http.StatusMultiStatus, map[string]interface{}{
				"summary": sum,
				"error":   err.Error(),
			})
			return
		}
		responder.JSON(http.StatusOK, sum)
	}
}

func processReturns(logger log.Logger, s Settlement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if !requireMethod(responder, r, "POST") {
			return
		}
		if s.Returns == nil {
			responder.ProblemStatus(http.StatusNotFound, errors.New("returns processing is disabled"))
			return
		}
		if err := s.Returns.Tick(r.Context()); err != nil {
			problem(responder, err)
			return
		}
		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}
