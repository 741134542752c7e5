// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestReadPubKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	check := func(t *testing.T, data []byte) {
		t.Helper()
		parsed, err := readPubKey(data)
		if parsed == nil || err != nil {
			t.Fatalf("PublicKey=%v error=%v", parsed, err)
		}
		if string(parsed.Marshal()) != string(key.Marshal()) {
			t.Error("parsed a different key")
		}
	}

	authorized := ssh.MarshalAuthorizedKey(key)
	check(t, authorized)
	check(t, []byte(base64.StdEncoding.EncodeToString(authorized)))
	check(t, key.Marshal())

	if _, err := readPubKey([]byte("invalid")); err == nil {
		t.Error("expected error")
	}
}
