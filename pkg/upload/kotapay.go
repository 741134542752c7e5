// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/kotapay"

	"github.com/go-kit/kit/log"
)

// kotapayAgent submits files over the processor's REST API. Returns arrive
// through the acknowledgement report so there are no return files to read.
type kotapayAgent struct {
	client kotapay.Client
	logger log.Logger
}

func newKotapayAgent(logger log.Logger, client kotapay.Client) (*kotapayAgent, error) {
	if client == nil {
		return nil, errors.New("upload: nil kotapay client")
	}
	return &kotapayAgent{
		client: client,
		logger: logger,
	}, nil
}

func (agent *kotapayAgent) UploadFile(ctx context.Context, f File) (*Receipt, error) {
	defer f.Close()

	bs, err := ioutil.ReadAll(f.Contents)
	if err != nil {
		return nil, fmt.Errorf("upload: reading %s: %v", f.Filename, err)
	}
	resp, err := agent.client.UploadFile(ctx, kotapay.FileUpload{
		FileID:   f.ID,
		Filename: f.Filename,
		Contents: bs,
		TestMode: f.TestMode,
	})
	if err != nil {
		return nil, err
	}
	agent.logger.Log("upload", fmt.Sprintf("uploaded %s", f.Filename), "reference", resp.Reference, "testMode", f.TestMode)
	return &Receipt{
		Reference: resp.Reference,
		Status:    resp.Status,
	}, nil
}

func (agent *kotapayAgent) GetReturnFiles(_ context.Context) ([]File, error) {
	return nil, nil
}

func (agent *kotapayAgent) Delete(_ string) error {
	return nil
}

func (agent *kotapayAgent) Hostname() string {
	return agent.client.Hostname()
}

func (agent *kotapayAgent) Ping() error {
	return agent.client.Ping(context.Background())
}

func (agent *kotapayAgent) Close() error {
	return nil
}
