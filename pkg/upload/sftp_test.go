// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"testing"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
)

func TestSFTP__clientConfig(t *testing.T) {
	cfg := &config.SFTP{
		Hostname: "sftp.example.com:22",
		Username: "trpay",
	}
	if _, err := sftpClientConfig(log.NewNopLogger(), cfg); err == nil {
		t.Error("expected error without auth")
	}

	cfg.Password = "secret"
	conf, err := sftpClientConfig(log.NewNopLogger(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if conf.User != "trpay" || len(conf.Auth) != 1 {
		t.Errorf("unexpected config: %#v", conf)
	}
	if conf.Timeout != cfg.Timeout() {
		t.Errorf("timeout=%v", conf.Timeout)
	}

	cfg.HostPublicKey = "invalid"
	if _, err := sftpClientConfig(log.NewNopLogger(), cfg); err == nil {
		t.Error("expected error on bad host key")
	}
}

func TestSFTP__paths(t *testing.T) {
	agent := &SFTPTransferAgent{cfg: &config.SFTP{
		Hostname:     "sftp.example.com:22",
		OutboundPath: "outbound/",
		TestPath:     "test/",
	}}
	if agent.Hostname() != "sftp.example.com" {
		t.Errorf("hostname=%s", agent.Hostname())
	}
	if dir := agent.outboundDir(false); dir != "outbound/" {
		t.Errorf("dir=%s", dir)
	}
	if dir := agent.outboundDir(true); dir != "test/" {
		t.Errorf("dir=%s", dir)
	}
}

func TestNew__unknown(t *testing.T) {
	if _, err := New(log.NewNopLogger(), config.Upload{Agent: "ftp"}, nil); err == nil {
		t.Error("expected error")
	}
	if _, err := New(log.NewNopLogger(), config.Upload{Agent: "kotapay"}, nil); err == nil {
		t.Error("expected error without a client")
	}
}
