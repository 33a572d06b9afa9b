// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	sigsig "github.com/sigstore/sigstore/pkg/signature"
)

// LoadVerifier returns a sigstore verifier for the scheme Sign uses with
// publicKey.
func LoadVerifier(publicKey crypto.PublicKey) (sigsig.Verifier, error) {
	h, err := HashFor(publicKey)
	if err != nil {
		return nil, err
	}
	switch key := publicKey.(type) {
	case *ecdsa.PublicKey:
		return sigsig.LoadECDSAVerifier(key, h)
	case *rsa.PublicKey:
		return sigsig.LoadRSAPSSVerifier(key, h, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: h})
	case ed25519.PublicKey:
		return sigsig.LoadED25519Verifier(key)
	}
	return nil, fmt.Errorf("unsupported public key type for verification: %T", publicKey)
}

// VerifySignature checks signature over message. RSA signatures made with
// PKCS#1 v1.5 are accepted as well as PSS.
func VerifySignature(publicKey crypto.PublicKey, message, signature []byte) error {
	v, err := LoadVerifier(publicKey)
	if err != nil {
		return err
	}
	err = v.VerifySignature(bytes.NewReader(signature), bytes.NewReader(message))
	if err == nil {
		return nil
	}
	if key, ok := publicKey.(*rsa.PublicKey); ok {
		legacy, lerr := sigsig.LoadRSAPKCS1v15Verifier(key, crypto.SHA256)
		if lerr == nil && legacy.VerifySignature(bytes.NewReader(signature), bytes.NewReader(message)) == nil {
			return nil
		}
	}
	return fmt.Errorf("%T signature verification failed: %w", publicKey, err)
}
