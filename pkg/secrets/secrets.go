// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"gocloud.dev/secrets"
	"gocloud.dev/secrets/localsecrets"
)

// StringKeeper wraps a secrets.Keeper but accepts and returns strings, which are easier
// to store in a database or pass around. Encrypted and decryptable values must be in
// base64.StdEncoding format.
type StringKeeper struct {
	keeper *secrets.Keeper
	enc    *base64.Encoding

	timeout time.Duration
}

func NewStringKeeper(keeper *secrets.Keeper, timeout time.Duration) *StringKeeper {
	return &StringKeeper{
		keeper:  keeper,
		enc:     base64.StdEncoding,
		timeout: timeout,
	}
}

// Open returns the StringKeeper used for routing and account numbers at rest.
func Open(cfg config.Secrets) (*StringKeeper, error) {
	keeper, err := OpenLocal(cfg.GetLocalKey())
	if err != nil {
		return nil, err
	}
	return NewStringKeeper(keeper, 10*time.Second), nil
}

func (str *StringKeeper) Close() error {
	if str == nil {
		return nil
	}
	return str.keeper.Close()
}

// EncryptString accepts a string a returns the base64.StdEncoding encoding of its encrypted contents
func (str *StringKeeper) EncryptString(ctx context.Context, in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	bs, err := str.keeper.Encrypt(ctx, []byte(in))
	if err != nil {
		return "", err
	}
	return str.enc.EncodeToString(bs), nil
}

// DecryptString accepts a base64.StdEncoding string and returns the plaintext decrypted version
func (str *StringKeeper) DecryptString(ctx context.Context, in string) (string, error) {
	if str == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	bs, err := str.enc.DecodeString(in)
	if err != nil {
		return "", err
	}
	bs, err = str.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// Encrypt seals raw bytes, used for archived files.
func (str *StringKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if str == nil {
		return nil, errors.New("nil StringKeeper")
	}
	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	return str.keeper.Encrypt(ctx, plaintext)
}

func (str *StringKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if str == nil {
		return nil, errors.New("nil StringKeeper")
	}
	ctx, cancelFn := context.WithTimeout(ctx, str.timeout)
	defer cancelFn()

	return str.keeper.Decrypt(ctx, ciphertext)
}

// OpenLocal returns an inmemory Keeper based on a provided key.
//
// The key must be base64 encoded and 32 bytes long when decoded. An empty
// key falls back to a fixed development key.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	if base64Key == "" {
		base64Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32))
	}
	key, err := localsecrets.Base64Key(base64Key)
	if err != nil {
		return nil, fmt.Errorf("problem reading SECRETS_LOCAL_BASE64_KEY: %v", err)
	}
	return localsecrets.NewKeeper(key), nil
}

// LastFour returns the final four characters of s, or s when it's shorter.
func LastFour(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
