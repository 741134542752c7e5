// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"fmt"

	"github.com/moov-io/ach"
)

type Topic string

const (
	Upload   Topic = "upload"
	Download Topic = "download"
	Return   Topic = "return"
	Ledger   Topic = "ledger"
	Payment  Topic = "payment"
)

type Message struct {
	Topic   Topic
	Subject string
	Body    string

	// Filename and File are set for NACHA file messages
	Filename string
	File     *ach.File
	Hostname string
}

func (msg *Message) String() string {
	if msg == nil {
		return ""
	}
	if msg.Subject != "" {
		return msg.Subject
	}
	if msg.Filename != "" {
		if msg.Hostname != "" {
			return fmt.Sprintf("%s of %s to %s", msg.Topic, msg.Filename, msg.Hostname)
		}
		return fmt.Sprintf("%s of %s", msg.Topic, msg.Filename)
	}
	return string(msg.Topic)
}

type Sender interface {
	Info(msg *Message) error
	Critical(msg *Message) error
}
