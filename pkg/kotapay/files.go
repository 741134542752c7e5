// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
)

type FileUpload struct {
	// FileID is sent as the Idempotency-Key so a retried upload isn't originated twice
	FileID   string
	Filename string
	Contents []byte

	TestMode bool
}

type FileUploadResponse struct {
	Reference string `json:"fileId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// UploadFile submits a NACHA file as multipart form data.
func (c *HTTPClient) UploadFile(ctx context.Context, f FileUpload) (*FileUploadResponse, error) {
	if len(f.Contents) == 0 {
		return nil, errors.New("kotapay: empty file")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(f.Filename))
	if err != nil {
		return nil, fmt.Errorf("kotapay: upload: %v", err)
	}
	if _, err := part.Write(f.Contents); err != nil {
		return nil, fmt.Errorf("kotapay: upload: %v", err)
	}
	if err := w.WriteField("companyId", c.cfg.CompanyID); err != nil {
		return nil, fmt.Errorf("kotapay: upload: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("kotapay: upload: %v", err)
	}

	req := &request{
		operation:   "upload-file",
		method:      "POST",
		path:        "/v1/file/ach",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		headers:     make(http.Header),
	}
	if f.FileID != "" {
		req.headers.Set("Idempotency-Key", f.FileID)
	}
	if f.TestMode {
		req.query = url.Values{"testMode": []string{"true"}}
	}

	var resp FileUploadResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
