// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/gorilla/mux"
)

func TestSlack__marshal(t *testing.T) {
	msg := &Message{
		Topic:    Upload,
		Filename: "20201014-A.ach",
		Hostname: "sftp.kotapay.com:22",
	}
	if out := marshalSlackMessage(success, msg); out != "successful upload of 20201014-A.ach to sftp.kotapay.com:22" {
		t.Errorf("unexpected message: %q", out)
	}

	msg = &Message{Topic: Return, Subject: "R01 on trace 123", Body: "entry returned"}
	if out := marshalSlackMessage(failed, msg); out != ":warning: R01 on trace 123\nentry returned" {
		t.Errorf("unexpected message: %q", out)
	}
}

func TestSlack__send(t *testing.T) {
	var received []string

	router := mux.NewRouter()
	router.Methods("POST").Path("/webhook").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req slackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received = append(received, req.Text)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	slack, err := NewSlack(&config.Slack{WebhookURL: server.URL + "/webhook"})
	if err != nil {
		t.Fatal(err)
	}
	if err := slack.Info(&Message{Topic: Upload, Filename: "a.ach"}); err != nil {
		t.Fatal(err)
	}
	if err := slack.Critical(&Message{Topic: Return, Subject: "hard return"}); err != nil {
		t.Fatal(err)
	}
	if len(received) != 2 {
		t.Fatalf("got %d messages", len(received))
	}
	if !strings.Contains(received[1], "hard return") {
		t.Errorf("unexpected critical text: %q", received[1])
	}
}

func TestSlack__sendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	slack, err := NewSlack(&config.Slack{WebhookURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := slack.Info(&Message{Topic: Upload}); err == nil {
		t.Error("expected error")
	}
}

func TestSlack__missingURL(t *testing.T) {
	if _, err := NewSlack(nil); err == nil {
		t.Error("expected error")
	}
}
