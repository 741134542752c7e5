// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/feeplan"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/money"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/x/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/moov-io/base/admin"
)

// Processor takes a payment for a command.
type Processor interface {
	Process(ctx context.Context, cmd *Command) (*Result, error)
}

type Router struct {
	logger    log.Logger
	repo      Repository
	processor Processor
}

func NewRouter(logger log.Logger, repo Repository, processor Processor) *Router {
	return &Router{
		logger:    logger,
		repo:      repo,
		processor: processor,
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("POST").Path("/payments").HandlerFunc(c.createPayment(SourcePublic))
	r.Methods("GET").Path("/payments/{transactionID}").HandlerFunc(c.getPayment())
	r.Methods("POST").Path("/payment-plans/fee").HandlerFunc(c.calculatePlanFee())
}

// RegisterAdminRoutes adds staff entered payments to the admin server.
func (c *Router) RegisterAdminRoutes(svc *admin.Server) {
	svc.AddHandler("/payments", c.createPayment(SourceAdmin))
}

type invoiceRequest struct {
	Number    string       `json:"number"`
	ClientKey int          `json:"clientKey"`
	Amount    money.Amount `json:"amount"`
}

type paymentRequest struct {
	TransactionID string `json:"transactionId"`
	CustomerRef   string `json:"customerRef"`
	ClientKey     int    `json:"clientKey"`
	Email         string `json:"email"`

	Amount      money.Amount  `json:"amount"`
	Fee         *money.Amount `json:"fee"`
	FeeIncluded bool          `json:"feeIncluded"`

	Invoices         []invoiceRequest `json:"invoices"`
	SelectedInvoices []string         `json:"selectedInvoices"`
	Engagements      []string         `json:"engagements"`

	SavePaymentMethod bool `json:"savePaymentMethod"`
	SendReceipt       bool `json:"sendReceipt"`
	LeaveUnapplied    bool `json:"leaveUnapplied"`

	Card          *CardDetails  `json:"card"`
	ACH           *ACHDetails   `json:"ach"`
	Check         *CheckDetails `json:"check"`
	SavedMethodID string        `json:"savedMethodId"`
}

func (req paymentRequest) details() Details {
	d := Details{
		TransactionID:     req.TransactionID,
		CustomerRef:       req.CustomerRef,
		ClientKey:         req.ClientKey,
		Email:             req.Email,
		Amount:            req.Amount.Cents(),
		FeeIncluded:       req.FeeIncluded,
		SelectedInvoices:  req.SelectedInvoices,
		Engagements:       req.Engagements,
		SavePaymentMethod: req.SavePaymentMethod,
	}
	if req.Fee != nil {
		d.Fee = req.Fee.Cents()
	}
	for _, inv := range req.Invoices {
		d.Invoices = append(d.Invoices, Invoice{
			Number:    inv.Number,
			ClientKey: inv.ClientKey,
			Amount:    inv.Amount.Cents(),
		})
	}
	return d
}

func (c *Router) command(ctx context.Context, source Source, req paymentRequest) (*Command, error) {
	d := req.details()
	isAdmin := source == SourceAdmin

	present := 0
	for _, set := range []bool{req.Card != nil, req.ACH != nil, req.Check != nil, req.SavedMethodID != ""} {
		if set {
			present++
		}
	}
	if present != 1 {
		return nil, invalid("exactly one of card, ach, check or savedMethodId is required")
	}

	switch {
	case req.Card != nil && isAdmin:
		return NewAdminCardPayment(AdminCardPayment{Details: d, LeaveUnapplied: req.LeaveUnapplied, Card: *req.Card})
	case req.Card != nil:
		return NewCardPayment(CardPayment{Details: d, SendReceipt: req.SendReceipt, Card: *req.Card})

	case req.ACH != nil && isAdmin:
		return NewAdminACHPayment(AdminACHPayment{Details: d, LeaveUnapplied: req.LeaveUnapplied, ACH: *req.ACH})
	case req.ACH != nil:
		return NewACHPayment(ACHPayment{Details: d, SendReceipt: req.SendReceipt, ACH: *req.ACH})

	case req.Check != nil:
		if !isAdmin {
			return nil, invalid("checks are only accepted from staff")
		}
		return NewAdminCheckPayment(AdminCheckPayment{Details: d, LeaveUnapplied: req.LeaveUnapplied, Check: *req.Check})
	}

	m, err := c.repo.GetMethod(ctx, req.SavedMethodID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("saved payment method not found")
		}
		return nil, err
	}
	if m.CustomerRef != d.CustomerRef {
		return nil, invalid("saved payment method not found")
	}
	if isAdmin {
		return NewAdminSavedMethodPayment(AdminSavedMethodPayment{Details: d, LeaveUnapplied: req.LeaveUnapplied, Method: m.Saved()})
	}
	return NewSavedMethodPayment(SavedMethodPayment{Details: d, SendReceipt: req.SendReceipt, Method: m.Saved()})
}

func (c *Router) createPayment(source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if r.Method != "POST" {
			responder.ProblemStatus(http.StatusMethodNotAllowed, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}

		var req paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		cmd, err := c.command(r.Context(), source, req)
		if err != nil {
			if errors.Is(err, ErrInvalidCommand) {
				responder.Problem(err)
			} else {
				responder.Log("payments", "problem building payment", "error", err)
				responder.ProblemStatus(http.StatusInternalServerError, errors.New("internal error"))
			}
			return
		}

		result, err := c.processor.Process(r.Context(), cmd)
		if err != nil {
			if errors.Is(err, ErrChargeInProgress) {
				responder.ProblemStatus(http.StatusConflict, err)
				return
			}
			responder.Problem(err)
			return
		}
		responder.Log("payments", "payment request finished", "transactionID", result.TransactionID(), "success", result.Success())

		status := http.StatusOK
		if !result.Success() {
			status = http.StatusUnprocessableEntity
		}
		responder.JSON(status, result)
	}
}

func (c *Router) getPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)

		p, err := c.repo.GetPayment(r.Context(), route.ReadPathID("transactionID", r))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				responder.ProblemStatus(http.StatusNotFound, err)
				return
			}
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, p)
	}
}

type planFeeRequest struct {
	Total        float64 `json:"total"`
	DownPayment  float64 `json:"downPayment"`
	Installments int     `json:"installments"`
	Frequency    string  `json:"frequency"`
}

func (c *Router) calculatePlanFee() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)

		var req planFeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		freq, err := feeplan.ParseFrequency(req.Frequency)
		if err != nil {
			responder.Problem(err)
			return
		}
		result, err := feeplan.Calculate(req.Total, req.DownPayment, req.Installments, freq)
		if err != nil {
			responder.Problem(err)
			return
		}
		responder.JSON(http.StatusOK, struct {
			*feeplan.Result
			Valid bool `json:"valid"`
		}{
			Result: result,
			Valid:  result.Valid(),
		})
	}
}
