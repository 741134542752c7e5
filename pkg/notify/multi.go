// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

// MultiSender fans each message out to every configured Sender.
// A failing Sender does not stop delivery to the others.
type MultiSender struct {
	logger  log.Logger
	senders []Sender
}

func NewMultiSender(logger log.Logger, cfg *config.PipelineNotifications) (*MultiSender, error) {
	ms := &MultiSender{logger: logger}
	if cfg == nil {
		return ms, nil
	}
	if cfg.Email != nil {
		sender, err := NewEmail(cfg.Email)
		if err != nil {
			return nil, err
		}
		ms.senders = append(ms.senders, sender)
	}
	if cfg.PagerDuty != nil {
		sender, err := NewPagerDuty(cfg.PagerDuty)
		if err != nil {
			return nil, err
		}
		ms.senders = append(ms.senders, sender)
	}
	if cfg.Slack != nil {
		sender, err := NewSlack(cfg.Slack)
		if err != nil {
			return nil, err
		}
		ms.senders = append(ms.senders, sender)
	}
	logger.Log("notify", "setup MultiSender", "senders", len(ms.senders))
	return ms, nil
}

// Returns builds the MultiSender for the returns notification channel.
func Returns(logger log.Logger, cfg config.Returns, from *config.Email) (*MultiSender, error) {
	notifications := &config.PipelineNotifications{}
	if len(cfg.Email) > 0 && from != nil {
		email := *from
		email.To = cfg.Email
		notifications.Email = &email
	}
	if cfg.SlackWebhookURL != "" {
		notifications.Slack = &config.Slack{WebhookURL: cfg.SlackWebhookURL}
	}
	return NewMultiSender(logger, notifications)
}

func (ms *MultiSender) Info(msg *Message) error {
	var el base.ErrorList
	for i := range ms.senders {
		if err := ms.senders[i].Info(msg); err != nil {
			ms.logger.Log("notify", "problem sending info notification", "topic", msg.Topic, "error", err)
			el.Add(err)
		}
	}
	if el.Empty() {
		return nil
	}
	return el
}

func (ms *MultiSender) Critical(msg *Message) error {
	var el base.ErrorList
	for i := range ms.senders {
		if err := ms.senders[i].Critical(msg); err != nil {
			ms.logger.Log("notify", "problem sending critical notification", "topic", msg.Topic, "error", err)
			el.Add(err)
		}
	}
	if el.Empty() {
		return nil
	}
	return el
}
