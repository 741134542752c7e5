// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kotapay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

const (
	// tokenLifetime is used when the processor doesn't state one.
	tokenLifetime = 5 * time.Minute

	// tokenBuffer is removed from each token's lifetime. oauth2 treats tokens as
	// expired 10s early so cached tokens live 4.5 minutes.
	tokenBuffer = 20 * time.Second
)

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenSource fetches bearer tokens, it's wrapped in oauth2.ReuseTokenSource for caching.
type tokenSource struct {
	client *HTTPClient

	now func() time.Time
}

func (ts *tokenSource) credentials() (*tokenRequest, error) {
	cfg := ts.client.cfg
	if cfg.ClientID != "" && cfg.GetClientSecret() != "" {
		return &tokenRequest{
			GrantType:    "client_credentials",
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.GetClientSecret(),
		}, nil
	}
	if cfg.Username != "" && cfg.GetPassword() != "" {
		return &tokenRequest{
			GrantType: "password",
			ClientID:  cfg.ClientID,
			Username:  cfg.Username,
			Password:  cfg.GetPassword(),
		}, nil
	}
	return nil, errors.New("kotapay: missing client credentials or username/password")
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	body, err := ts.credentials()
	if err != nil {
		return nil, err
	}
	req, err := jsonRequest("token", "POST", "/v1/auth/token", body)
	if err != nil {
		return nil, err
	}
	req.anonymous = true

	var resp tokenResponse
	if err := ts.client.do(context.Background(), req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("kotapay: empty access token")
	}

	lifetime := tokenLifetime
	if resp.ExpiresIn > 0 {
		lifetime = time.Duration(resp.ExpiresIn) * time.Second
	}
	now := time.Now
	if ts.now != nil {
		now = ts.now
	}
	return &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Expiry:      now().Add(lifetime - tokenBuffer),
	}, nil
}
