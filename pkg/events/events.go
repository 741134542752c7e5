// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package events publishes settlement lifecycle events onto a gocloud.dev/pubsub
// topic. In-memory (mem://) and Kafka topics are registered.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/Shopify/sarama"
	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

type Type string

const (
	PaymentProcessed Type = "payment.processed"
	FileGenerated    Type = "file.generated"
	FileSubmitted    Type = "file.submitted"
	FileAccepted     Type = "file.accepted"
	FileRejected     Type = "file.rejected"
	EntriesSettled   Type = "entries.settled"
	EntryReturned    Type = "entry.returned"
	EntryCorrected   Type = "entry.corrected"
)

type Event struct {
	ID       string            `json:"id"`
	Type     Type              `json:"type"`
	Subject  string            `json:"subject"` // e.g. a file or transaction id
	Occurred time.Time         `json:"occurred"`
	Data     map[string]string `json:"data,omitempty"`
}

func New(t Type, subject string, data map[string]string) Event {
	return Event{
		ID:       base.ID(),
		Type:     t,
		Subject:  subject,
		Occurred: time.Now().UTC(),
		Data:     data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Shutdown(ctx context.Context) error
}

// NewPublisher opens the configured topic, without one events are only logged.
func NewPublisher(logger log.Logger, cfg *config.StreamPipeline) (Publisher, error) {
	if cfg == nil {
		return &logPublisher{logger: logger}, nil
	}
	if cfg.InMem != nil {
		topic, err := pubsub.OpenTopic(context.Background(), cfg.InMem.URL)
		if err != nil {
			return nil, err
		}
		return &streamPublisher{topic: topic, logger: logger}, nil
	}
	if cfg.Kafka != nil {
		return createKafkaPublisher(logger, cfg.Kafka)
	}
	return nil, errors.New("unknown stream config")
}

// createKafkaPublisher uses a sarama.SyncProducer, which requires
// Producer.Return.Successes.
func createKafkaPublisher(logger log.Logger, cfg *config.KafkaPipeline) (*streamPublisher, error) {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true

	topic, err := kafkapubsub.OpenTopic(cfg.Brokers, conf, cfg.Topic, nil)
	if err != nil {
		return nil, err
	}
	return &streamPublisher{topic: topic, logger: logger}, nil
}

type streamPublisher struct {
	topic  *pubsub.Topic
	logger log.Logger
}

func (pub *streamPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"type":    string(evt.Type),
			"subject": evt.Subject,
		},
	}
	if err := pub.topic.Send(ctx, msg); err != nil {
		pub.logger.Log("events", "problem publishing event", "type", evt.Type, "subject", evt.Subject, "error", err)
		return err
	}
	return nil
}

func (pub *streamPublisher) Shutdown(ctx context.Context) error {
	return pub.topic.Shutdown(ctx)
}

type logPublisher struct {
	logger log.Logger
}

func (pub *logPublisher) Publish(_ context.Context, evt Event) error {
	pub.logger.Log("events", string(evt.Type), "subject", evt.Subject)
	return nil
}

func (pub *logPublisher) Shutdown(_ context.Context) error {
	return nil
}

// Decode reads an Event from a received message.
func Decode(msg *pubsub.Message) (Event, error) {
	var evt Event
	err := json.Unmarshal(msg.Body, &evt)
	return evt, err
}
