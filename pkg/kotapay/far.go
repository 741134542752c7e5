// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"context"
	"time"
)

type FARRequest struct {
	CompanyID string `json:"companyId"`
	StartDate string `json:"startDate"` // YYYY-MM-DD
	EndDate   string `json:"endDate"`
}

// NewFARRequest covers every day from start through end.
func NewFARRequest(start, end time.Time) FARRequest {
	return FARRequest{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}
}

// FAR is a File Acknowledgement Report, the processor's verdict on uploaded
// files along with entries returned or corrected by receiving banks.
type FAR struct {
	Files   []FileAcknowledgement `json:"files"`
	Returns []ReturnItem          `json:"returns"`
}

type FileAcknowledgement struct {
	Reference string `json:"fileId"`
	Filename  string `json:"filename"`
	Status    string `json:"status"` // accepted or rejected
	Reason    string `json:"reason,omitempty"`
}

func (ack FileAcknowledgement) Accepted() bool {
	return ack.Status == "accepted"
}

type ReturnItem struct {
	TraceNumber   string  `json:"traceNumber"`
	Code          string  `json:"returnCode"`
	Reason        string  `json:"reason,omitempty"`
	CorrectedData string  `json:"correctedData,omitempty"`
	Amount        float64 `json:"amount"`
	EffectiveDate string  `json:"effectiveDate,omitempty"`
}

func (c *HTTPClient) FileAcknowledgementReport(ctx context.Context, far FARRequest) (*FAR, error) {
	if far.CompanyID == "" {
		far.CompanyID = c.cfg.CompanyID
	}
	req, err := jsonRequest("far", "POST", "/v1/reports/far", far)
	if err != nil {
		return nil, err
	}
	var resp FAR
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
