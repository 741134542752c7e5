// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	trpay "github.com/FoleyBridge-Solutions/tr-pay-sub005"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"golang.org/x/oauth2"
)

// Client is the settlement processor's REST API.
type Client interface {
	CreatePayment(ctx context.Context, p Payment) (*PaymentResponse, error)
	CreateRecurringPayment(ctx context.Context, p RecurringPayment) (*PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentResponse, error)
	VoidPayment(ctx context.Context, paymentID string) error

	UploadFile(ctx context.Context, f FileUpload) (*FileUploadResponse, error)
	FileAcknowledgementReport(ctx context.Context, req FARRequest) (*FAR, error)

	Hostname() string
	Ping(ctx context.Context) error
}

// Error is a non-2xx response from the processor.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("kotapay: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

func (e *Error) retryable() bool {
	return e.StatusCode >= 500
}

var ErrMissingApplicationID = errors.New("kotapay: missing application id")

type HTTPClient struct {
	cfg      config.Kotapay
	endpoint string

	client *http.Client
	tokens oauth2.TokenSource
	sleep  func(ctx context.Context, d time.Duration) error

	logger log.Logger
}

func New(logger log.Logger, cfg config.Kotapay) *HTTPClient {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			MaxConnsPerHost:     100,
			IdleConnTimeout:     1 * time.Minute,
		},
	}
	return newClient(logger, cfg, httpClient)
}

func newClient(logger log.Logger, cfg config.Kotapay, httpClient *http.Client) *HTTPClient {
	c := &HTTPClient{
		cfg:      cfg,
		endpoint: cfg.Address(),
		client:   httpClient,
		sleep:    sleepContext,
		logger:   logger,
	}
	c.tokens = oauth2.ReuseTokenSource(nil, &tokenSource{client: c})
	return c
}

func (c *HTTPClient) Hostname() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Ping verifies our credentials by obtaining a token.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.tokens.Token()
	if err != nil {
		c.trackError("ping")
	}
	return err
}

// applicationID picks the configured application for personal or business accounts.
func (c *HTTPClient) applicationID(holderType string) (string, error) {
	var id string
	switch strings.ToLower(holderType) {
	case "business":
		id = c.cfg.ApplicationIDs.Business
	default:
		id = c.cfg.ApplicationIDs.Personal
	}
	if id == "" {
		return "", ErrMissingApplicationID
	}
	return id, nil
}

// buildAddress joins the endpoint's path with p.
func (c *HTTPClient) buildAddress(p string) string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		c.logger.Log("kotapay", fmt.Sprintf("invalid endpoint=%s", u.String()))
		return ""
	}
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (c *HTTPClient) companyPath(parts ...string) string {
	return path.Join(append([]string{"/v1/Ach", url.PathEscape(c.cfg.CompanyID)}, parts...)...)
}

type request struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	headers     http.Header

	// anonymous requests skip the bearer token
	anonymous bool
}

func jsonRequest(operation, method, p string, body interface{}) (*request, error) {
	req := &request{
		operation: operation,
		method:    method,
		path:      p,
	}
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("kotapay: %s: encoding: %v", operation, err)
		}
		req.body = bs
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a JSON response into out. Transport errors and 5xx
// responses are retried according to the retry policy, other responses are final.
func (c *HTTPClient) do(ctx context.Context, req *request, out interface{}) error {
	attempts := c.cfg.Retry.Attempts()

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := c.sleep(ctx, c.cfg.Retry.Delay()); serr != nil {
				return serr
			}
		}
		err = c.attempt(ctx, req, out)
		if err == nil {
			return nil
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		c.logger.Log("kotapay", fmt.Sprintf("%s attempt %d of %d failed", req.operation, i+1, attempts), "error", err)
	}
	c.trackError(req.operation)
	return err
}

func (c *HTTPClient) attempt(ctx context.Context, req *request, out interface{}) error {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	address := c.buildAddress(req.path)
	if len(req.query) > 0 {
		address += "?" + req.query.Encode()
	}
	r, err := http.NewRequestWithContext(ctx, req.method, address, body)
	if err != nil {
		return fmt.Errorf("kotapay: %s: %v", req.operation, err)
	}
	r.Header.Set("User-Agent", fmt.Sprintf("trpay/%s", trpay.Version))
	r.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		r.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.headers {
		r.Header[k] = v
	}
	if !req.anonymous {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("kotapay: %s: token: %w", req.operation, err)
		}
		tok.SetAuthHeader(r)
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return fmt.Errorf("kotapay: %s: %v", req.operation, err)
	}
	defer resp.Body.Close()

	bs, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kotapay: %s: reading response: %v", req.operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(bs)}
	}
	if out != nil && len(bs) > 0 {
		if err := json.Unmarshal(bs, out); err != nil {
			return fmt.Errorf("kotapay: %s: decoding response: %v", req.operation, err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var wrapper struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if wrapper.Message != "" {
			return wrapper.Message
		}
		if wrapper.Error != "" {
			return wrapper.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
