// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const cardPaymentBody = `{
  "transactionId": "txn-1",
  "customerRef": "cust-42",
  "clientKey": 1001,
  "email": "jane@example.com",
  "amount": "USD 100.00",
  "fee": "USD 3.00",
  "invoices": [{"number": "INV-1", "clientKey": 1001, "amount": "USD 100.00"}],
  "selectedInvoices": ["INV-1"],
  "sendReceipt": true,
  "card": {"number": "4111111111111111", "expiration": "12/25", "cvv": "123"}
}`

func setupRouter(t *testing.T) (*testPayments, *mux.Router, *Router) {
	t.Helper()

	tp := setupPayments(t)
	router := NewRouter(log.NewNopLogger(), tp.repo, tp.orchestrator)

	r := mux.NewRouter()
	router.RegisterRoutes(r)
	return tp, r, router
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	w.Flush()
	return w
}

func TestRouter__createPayment(t *testing.T) {
	tp, r, _ := setupRouter(t)

	w := serve(r, "POST", "/payments", cardPaymentBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success       bool   `json:"success"`
		TransactionID string `json:"transactionId"`
		ReceiptSent   bool   `json:"receiptSent"`
		Payment       struct {
			Total int64 `json:"total"`
		} `json:"payment"`
		Ledger struct {
			Status string `json:"status"`
		} `json:"ledger"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, "txn-1", resp.TransactionID)
	require.True(t, resp.ReceiptSent)
	require.Equal(t, int64(10300), resp.Payment.Total)
	require.Equal(t, "written", resp.Ledger.Status)
	require.Len(t, tp.cards.Charges, 1)

	// read it back
	w = serve(r, "GET", "/payments/txn-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"gatewayTransactionId":"card-txn-1"`)

	w = serve(r, "GET", "/payments/txn-missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter__createPaymentDeclined(t *testing.T) {
	tp, r, _ := setupRouter(t)
	tp.cards.Response = &CardChargeResponse{Message: "do not honor"}

	w := serve(r, "POST", "/payments", cardPaymentBody)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "do not honor")
}

func TestRouter__createPaymentInvalid(t *testing.T) {
	_, r, _ := setupRouter(t)

	cases := map[string]string{
		"malformed":     `{"amount": `,
		"no method":     `{"customerRef": "cust-42", "amount": "USD 1.00", "selectedInvoices": ["INV-1"]}`,
		"two methods":   `{"customerRef": "cust-42", "amount": "USD 1.00", "selectedInvoices": ["INV-1"], "card": {}, "check": {}}`,
		"public check":  `{"customerRef": "cust-42", "amount": "USD 1.00", "selectedInvoices": ["INV-1"], "check": {"checkNumber": "1001"}}`,
		"bad card":      `{"customerRef": "cust-42", "amount": "USD 1.00", "selectedInvoices": ["INV-1"], "card": {"number": "4111"}}`,
		"saved missing": `{"customerRef": "cust-42", "amount": "USD 1.00", "selectedInvoices": ["INV-1"], "savedMethodId": "nope"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(r, "POST", "/payments", body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestRouter__inProgress(t *testing.T) {
	tp, r, _ := setupRouter(t)

	_, _, err := tp.repo.ClaimAttempt(context.Background(), "txn-1")
	require.NoError(t, err)

	w := serve(r, "POST", "/payments", cardPaymentBody)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter__savedMethod(t *testing.T) {
	tp, r, _ := setupRouter(t)
	ctx := context.Background()

	m := &Method{CustomerRef: "cust-42", Kind: "card", LastFour: "1111", CardToken: "tok-9"}
	require.NoError(t, tp.repo.SaveMethod(ctx, m))

	body := `{"transactionId": "txn-9", "customerRef": "cust-42", "clientKey": 1001, "amount": "USD 50.00",
"selectedInvoices": ["INV-1"], "savedMethodId": "` + m.ID + `"}`
	w := serve(r, "POST", "/payments", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "tok-9", tp.cards.Charges[0].Token)

	// methods of other customers aren't visible
	body = strings.Replace(body, "cust-42", "cust-7", 1)
	body = strings.Replace(body, "txn-9", "txn-10", 1)
	w = serve(r, "POST", "/payments", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter__adminCheck(t *testing.T) {
	tp, _, router := setupRouter(t)

	body := `{"transactionId": "txn-check", "customerRef": "cust-42", "clientKey": 1001, "amount": "USD 250.00",
"leaveUnapplied": true, "check": {"checkNumber": "10452"}}`

	handler := router.createPayment(SourceAdmin)
	w := serve(handler, "POST", "/payments", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := tp.repo.GetPayment(context.Background(), "txn-check")
	require.NoError(t, err)
	require.Equal(t, SourceAdmin, p.Source)
	require.Equal(t, MethodCheck, p.Method)
	require.Equal(t, "Account credit", p.Description)
	require.Empty(t, tp.ledger.entries)

	w = serve(handler, "GET", "/payments", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter__planFee(t *testing.T) {
	_, r, _ := setupRouter(t)

	w := serve(r, "POST", "/payment-plans/fee", `{"total": 1000, "downPayment": 250, "installments": 3, "frequency": "monthly"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Fee    float64 `json:"fee"`
		Months int     `json:"months"`
		Valid  bool    `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, 56.25, resp.Fee)
	require.Equal(t, 3, resp.Months)
	require.True(t, resp.Valid)

	w = serve(r, "POST", "/payment-plans/fee", `{"total": 1000, "installments": 3, "frequency": "daily"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
