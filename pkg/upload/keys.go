// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"encoding/base64"

	"golang.org/x/crypto/ssh"
)

// readPubKey parses an authorized_keys line or an RFC 4253 wire encoded key,
// either of which may be base64 encoded.
func readPubKey(data []byte) (ssh.PublicKey, error) {
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); len(decoded) > 0 && err == nil {
		data = decoded
	}
	if pub, _, _, _, err := ssh.ParseAuthorizedKey(data); pub != nil && err == nil {
		return pub, nil
	}
	return ssh.ParsePublicKey(data)
}

func readSigner(raw string) (ssh.Signer, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if len(decoded) > 0 && err == nil {
		return ssh.ParsePrivateKey(decoded)
	}
	return ssh.ParsePrivateKey([]byte(raw))
}
