// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"
)

func TestPublisher__inmem(t *testing.T) {
	ctx := context.Background()
	topicURL := "mem://trpay-events"

	pub, err := NewPublisher(log.NewNopLogger(), &config.StreamPipeline{
		InMem: &config.InMemPipeline{URL: topicURL},
	})
	require.NoError(t, err)
	defer pub.Shutdown(ctx)

	sub, err := pubsub.OpenSubscription(ctx, topicURL)
	require.NoError(t, err)
	defer sub.Shutdown(ctx)

	evt := New(FileGenerated, "file1", map[string]string{"filename": "20201014-987654320-1.ach"})
	require.NoError(t, pub.Publish(ctx, evt))

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	msg.Ack()

	require.Equal(t, "file.generated", msg.Metadata["type"])
	require.Equal(t, "file1", msg.Metadata["subject"])

	got, err := Decode(msg)
	require.NoError(t, err)
	require.Equal(t, evt.ID, got.ID)
	require.Equal(t, "20201014-987654320-1.ach", got.Data["filename"])
}

func TestPublisher__log(t *testing.T) {
	pub, err := NewPublisher(log.NewNopLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), New(EntryReturned, "entry1", nil)))
	require.NoError(t, pub.Shutdown(context.Background()))
}

func TestPublisher__unknown(t *testing.T) {
	_, err := NewPublisher(log.NewNopLogger(), &config.StreamPipeline{})
	require.Error(t, err)
}

func TestMockPublisher(t *testing.T) {
	pub := &MockPublisher{}
	pub.Publish(context.Background(), New(FileSubmitted, "file1", nil))
	pub.Publish(context.Background(), New(FileAccepted, "file1", nil))
	require.Equal(t, []Type{FileSubmitted, FileAccepted}, pub.Types())

	evts := pub.Events()
	require.Len(t, evts, 2)
	require.Equal(t, "file1", evts[0].Subject)
}
