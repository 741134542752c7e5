// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
)

type Slack struct {
	webhookURL string
	client     *http.Client
}

func NewSlack(cfg *config.Slack) (*Slack, error) {
	if cfg == nil || cfg.GetWebhookURL() == "" {
		return nil, errors.New("slack: missing webhook url")
	}
	return &Slack{
		webhookURL: cfg.GetWebhookURL(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type uploadStatus string

const (
	success uploadStatus = "successful"
	failed  uploadStatus = "failed"
)

func (s *Slack) Info(msg *Message) error {
	return s.send(marshalSlackMessage(success, msg))
}

func (s *Slack) Critical(msg *Message) error {
	return s.send(marshalSlackMessage(failed, msg))
}

func marshalSlackMessage(status uploadStatus, msg *Message) string {
	var text string
	if msg.Subject != "" {
		if status == failed {
			text = fmt.Sprintf(":warning: %s", msg.Subject)
		} else {
			text = msg.Subject
		}
	} else {
		text = fmt.Sprintf("%s %s", status, msg.String())
		if msg.Filename != "" && msg.Hostname == "" {
			text += " with processor"
		}
	}
	if msg.Body != "" {
		text += "\n" + msg.Body
	}
	return text
}

type slackRequest struct {
	Text string `json:"text"`
}

func (s *Slack) send(text string) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(slackRequest{Text: text}); err != nil {
		return fmt.Errorf("slack: encode: %v", err)
	}
	req, err := http.NewRequest("POST", s.webhookURL, &body)
	if err != nil {
		return fmt.Errorf("slack: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %s", resp.Status)
	}
	return nil
}
