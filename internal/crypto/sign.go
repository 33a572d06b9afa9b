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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256" // registers crypto.SHA256
	_ "crypto/sha512" // registers crypto.SHA384 and crypto.SHA512
	"fmt"
)

// HashFor returns the digest function paired with a public key:
//   - P-256 uses SHA256
//   - P-384 uses SHA384
//   - P-521 uses SHA512
//   - RSA uses SHA256 (PSS)
//   - Ed25519 signs the message directly and returns crypto.Hash(0)
func HashFor(pub crypto.PublicKey) (crypto.Hash, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		switch bits := key.Curve.Params().BitSize; bits {
		case 256:
			return crypto.SHA256, nil
		case 384:
			return crypto.SHA384, nil
		case 521:
			return crypto.SHA512, nil
		default:
			return 0, fmt.Errorf("unsupported ECDSA curve size: %d bits", bits)
		}
	case *rsa.PublicKey:
		return crypto.SHA256, nil
	case ed25519.PublicKey:
		return crypto.Hash(0), nil
	default:
		return 0, fmt.Errorf("unsupported public key type: %T", pub)
	}
}

// Sign signs data with signer.
//
// The key type of signer.Public() selects the scheme: ECDSA with ASN.1
// encoding and a curve-sized hash, RSA-PSS with SHA256, or pure Ed25519.
// Any crypto.Signer works, including ones backed by a remote KMS.
func Sign(signer crypto.Signer, data []byte) ([]byte, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer must not be nil")
	}

	pub := signer.Public()
	h, err := HashFor(pub)
	if err != nil {
		return nil, err
	}

	if _, ok := pub.(ed25519.PublicKey); ok {
		sig, err := signer.Sign(rand.Reader, data, crypto.Hash(0))
		if err != nil {
			return nil, fmt.Errorf("Ed25519 signing failed: %w", err)
		}
		return sig, nil
	}

	hasher := h.New()
	_, _ = hasher.Write(data)
	digest := hasher.Sum(nil)

	var opts crypto.SignerOpts = h
	if _, ok := pub.(*rsa.PublicKey); ok {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}
	}

	sig, err := signer.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("%T signing failed: %w", pub, err)
	}
	return sig, nil
}
