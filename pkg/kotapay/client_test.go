// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

var (
	addTokenRoute = func(tokens *int32) func(r *mux.Router) {
		return func(r *mux.Router) {
			r.Methods("POST").Path("/v1/auth/token").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req tokenRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				if req.ClientSecret != "secret" && req.Password != "password" {
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"message": "invalid credentials"}`))
					return
				}
				atomic.AddInt32(tokens, 1)
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"access_token": "token", "token_type": "Bearer", "expires_in": 300}`))
			})
		}
	}
)

func testConfig() config.Kotapay {
	return config.Kotapay{
		Environment:  "sandbox",
		ClientID:     "client",
		ClientSecret: "secret",
		CompanyID:    "FB01",
		ApplicationIDs: config.ApplicationIDs{
			Personal: "app-personal",
			Business: "app-business",
		},
		Timeout: 5 * time.Second,
		Retry: config.Retry{
			Enabled:     true,
			MaxAttempts: 3,
		},
	}
}

func newTestClient(t *testing.T, cfg config.Kotapay, routes ...func(*mux.Router)) (*HTTPClient, *int32) {
	t.Helper()

	var tokens int32
	r := mux.NewRouter()
	addTokenRoute(&tokens)(r)
	for i := range routes {
		routes[i](r)
	}
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	client := newClient(log.NewNopLogger(), cfg, server.Client())
	client.sleep = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	return client, &tokens
}

func requireBearer(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer token" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func TestClient__tokenCached(t *testing.T) {
	client, tokens := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("GET").Path("/v1/Ach/FB01/payment/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireBearer(w, r) {
				return
			}
			w.Write([]byte(`{"paymentId": "` + mux.Vars(r)["id"] + `", "status": "settled", "amount": 12.50}`))
		})
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		resp, err := client.GetPayment(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, "p1", resp.PaymentID)
		require.Equal(t, "settled", resp.Status)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(tokens))
}

func TestClient__tokenExpiry(t *testing.T) {
	client, _ := newTestClient(t, testConfig())

	now := time.Date(2020, time.October, 14, 12, 0, 0, 0, time.UTC)
	ts := &tokenSource{client: client, now: func() time.Time { return now }}
	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, now.Add(4*time.Minute+40*time.Second), tok.Expiry)

	// oauth2 refreshes 10s before Expiry
	require.Equal(t, now.Add(270*time.Second), tok.Expiry.Add(-10*time.Second))
}

func TestClient__badCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.ClientSecret = "wrong"
	client, _ := newTestClient(t, cfg)

	err := client.Ping(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "invalid credentials", apiErr.Message)

	cfg.ClientID, cfg.ClientSecret = "", ""
	client, _ = newTestClient(t, cfg)
	require.Error(t, client.Ping(context.Background()))

	cfg.Username, cfg.Password = "user", "password"
	client, _ = newTestClient(t, cfg)
	require.NoError(t, client.Ping(context.Background()))
}

func TestClient__CreatePayment(t *testing.T) {
	var received Payment
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("POST").Path("/v1/Ach/FB01/payment").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireBearer(w, r) {
				return
			}
			json.NewDecoder(r.Body).Decode(&received)
			w.Write([]byte(`{"paymentId": "p2", "status": "pending"}`))
		})
	})

	resp, err := client.CreatePayment(context.Background(), Payment{
		AccountName:   "Jane Doe",
		RoutingNumber: "121042882",
		AccountNumber: "123456789",
		AccountType:   "checking",
		HolderType:    "business",
		Amount:        100.25,
		SECCode:       "CCD",
	})
	require.NoError(t, err)
	require.Equal(t, "p2", resp.PaymentID)
	require.Equal(t, "app-business", received.ApplicationID)
	require.Equal(t, 100.25, received.Amount)
}

func TestClient__CreateRecurringPayment(t *testing.T) {
	var body map[string]interface{}
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("POST").Path("/v1/Ach/FB01/payment/recurring").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&body)
			w.Write([]byte(`{"paymentId": "r1", "status": "scheduled"}`))
		})
	})

	resp, err := client.CreateRecurringPayment(context.Background(), RecurringPayment{
		Payment:     Payment{Amount: 50, HolderType: "personal"},
		Frequency:   "monthly",
		StartDate:   "2020-11-01",
		Occurrences: 6,
	})
	require.NoError(t, err)
	require.Equal(t, "r1", resp.PaymentID)
	require.Equal(t, "app-personal", body["applicationId"])
	require.Equal(t, "monthly", body["frequency"])
}

func TestClient__missingApplicationID(t *testing.T) {
	cfg := testConfig()
	cfg.ApplicationIDs.Business = ""
	client, _ := newTestClient(t, cfg)

	_, err := client.CreatePayment(context.Background(), Payment{HolderType: "business"})
	require.Equal(t, ErrMissingApplicationID, err)
}

func TestClient__VoidPayment(t *testing.T) {
	var voided string
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("DELETE").Path("/v1/Ach/FB01/payment/void/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			voided = mux.Vars(r)["id"]
			w.WriteHeader(http.StatusNoContent)
		})
	})
	require.NoError(t, client.VoidPayment(context.Background(), "p3"))
	require.Equal(t, "p3", voided)
}

func TestClient__retries(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("GET").Path("/v1/Ach/FB01/payment/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"paymentId": "p4"}`))
		})
	})
	resp, err := client.GetPayment(context.Background(), "p4")
	require.NoError(t, err)
	require.Equal(t, "p4", resp.PaymentID)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient__noRetryOn4xx(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("GET").Path("/v1/Ach/FB01/payment/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "payment not found"}`))
		})
	})
	_, err := client.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "payment not found")
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient__retriesDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.Enabled = false

	var calls int32
	client, _ := newTestClient(t, cfg, func(r *mux.Router) {
		r.Methods("GET").Path("/v1/Ach/FB01/payment/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
	})
	_, err := client.GetPayment(context.Background(), "p5")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient__UploadFile(t *testing.T) {
	var (
		idempotencyKey string
		testMode       string
		contents       []byte
		filename       string
	)
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("POST").Path("/v1/file/ach").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireBearer(w, r) {
				return
			}
			idempotencyKey = r.Header.Get("Idempotency-Key")
			testMode = r.URL.Query().Get("testMode")

			fd, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer fd.Close()
			filename = header.Filename
			contents, _ = ioutil.ReadAll(fd)

			w.Write([]byte(`{"fileId": "kp-123", "status": "received"}`))
		})
	})

	resp, err := client.UploadFile(context.Background(), FileUpload{
		FileID:   "file1",
		Filename: "uploads/20201014-987654320-1.ach",
		Contents: []byte("101 ..."),
		TestMode: true,
	})
	require.NoError(t, err)
	require.Equal(t, "kp-123", resp.Reference)
	require.Equal(t, "file1", idempotencyKey)
	require.Equal(t, "true", testMode)
	require.Equal(t, "20201014-987654320-1.ach", filename)
	require.Equal(t, "101 ...", string(contents))

	_, err = client.UploadFile(context.Background(), FileUpload{FileID: "empty"})
	require.Error(t, err)
}

func TestClient__FileAcknowledgementReport(t *testing.T) {
	var req FARRequest
	client, _ := newTestClient(t, testConfig(), func(r *mux.Router) {
		r.Methods("POST").Path("/v1/reports/far").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&req)
			w.Write([]byte(`{
  "files": [{"fileId": "kp-123", "status": "accepted"}, {"fileId": "kp-124", "status": "rejected", "reason": "bad hash"}],
  "returns": [{"traceNumber": "231380100000001", "returnCode": "R01", "amount": 100.00}]
}`))
		})
	})

	start := time.Date(2020, time.October, 13, 0, 0, 0, 0, time.UTC)
	far, err := client.FileAcknowledgementReport(context.Background(), NewFARRequest(start, start.AddDate(0, 0, 1)))
	require.NoError(t, err)
	require.Equal(t, "FB01", req.CompanyID)
	require.Equal(t, "2020-10-13", req.StartDate)
	require.Equal(t, "2020-10-14", req.EndDate)

	require.Len(t, far.Files, 2)
	require.True(t, far.Files[0].Accepted())
	require.False(t, far.Files[1].Accepted())
	require.Equal(t, "bad hash", far.Files[1].Reason)
	require.Len(t, far.Returns, 1)
	require.Equal(t, "R01", far.Returns[0].Code)
}

func TestClient__buildAddress(t *testing.T) {
	client := &HTTPClient{endpoint: "http://localhost:8080", logger: log.NewNopLogger()}
	if v := client.buildAddress("/v1/file/ach"); v != "http://localhost:8080/v1/file/ach" {
		t.Errorf("got %q", v)
	}
	client.endpoint = "https://api.kotapay.com/"
	if v := client.buildAddress("/v1/reports/far"); v != "https://api.kotapay.com/v1/reports/far" {
		t.Errorf("got %q", v)
	}
	if h := client.Hostname(); h != "api.kotapay.com" {
		t.Errorf("hostname=%s", h)
	}
}
