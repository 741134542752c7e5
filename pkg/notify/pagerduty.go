// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	routingKey string
	from       string

	// manageEvent is replaced in tests
	manageEvent func(pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if cfg == nil {
		return nil, errors.New("pagerduty: nil config")
	}
	key := cfg.RoutingKey
	if key == "" {
		key = cfg.GetApiKey()
	}
	if key == "" {
		return nil, errors.New("pagerduty: missing routing key")
	}
	return &PagerDuty{
		routingKey:  key,
		from:        cfg.From,
		manageEvent: pagerduty.ManageEvent,
	}, nil
}

// Info messages are not paged.
func (pd *PagerDuty) Info(msg *Message) error {
	return nil
}

func (pd *PagerDuty) Critical(msg *Message) error {
	resp, err := pd.manageEvent(pd.event(msg))
	if err != nil {
		return fmt.Errorf("pagerduty: %v", err)
	}
	if resp != nil && resp.Status != "" && resp.Status != "success" {
		return fmt.Errorf("pagerduty: %s: %s", resp.Status, resp.Message)
	}
	return nil
}

func (pd *PagerDuty) event(msg *Message) pagerduty.V2Event {
	source := pd.from
	if source == "" {
		source = "trpay"
	}
	details := map[string]string{
		"topic": string(msg.Topic),
	}
	if msg.Body != "" {
		details["body"] = msg.Body
	}
	if msg.Filename != "" {
		details["filename"] = msg.Filename
	}
	return pagerduty.V2Event{
		RoutingKey: pd.routingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:   msg.String(),
			Source:    source,
			Severity:  "critical",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Component: string(msg.Topic),
			Details:   details,
		},
	}
}
