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

// Package signature produces and verifies detached signatures over manifest
// bytes.
//
// A signature file is a Sigstore protobuf bundle in JSON form. It carries a
// DSSE envelope whose payload is an in-toto statement binding the SHA-256 of
// the manifest, and the signer's x509 certificate chain, leaf first.
package signature

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	internalcrypto "github.com/sigstore/pass-signing/internal/crypto"
	"github.com/sigstore/pass-signing/pkg/dsse"
	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// Signer signs manifest bytes with a private key and its certificate chain.
type Signer struct {
	key             crypto.Signer
	chain           []*x509.Certificate
	clock           func() time.Time
	digestAlgorithm string
	logger          logging.Logger
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock overrides the signing time source.
func WithClock(clock func() time.Time) SignerOption {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDigestAlgorithm records the manifest digest algorithm in the signed
// statement.
func WithDigestAlgorithm(algorithm string) SignerOption {
	return func(s *Signer) {
		s.digestAlgorithm = algorithm
	}
}

// WithSignerLogger sets the logger.
func WithSignerLogger(l logging.Logger) SignerOption {
	return func(s *Signer) {
		s.logger = l
	}
}

// NewSigner checks that key matches the leaf of chain and that each
// certificate in chain is issued by the next one.
func NewSigner(key crypto.Signer, chain []*x509.Certificate, opts ...SignerOption) (*Signer, error) {
	if key == nil {
		return nil, signerr.New(signerr.KindSigningKey, "signing key must not be nil", nil)
	}
	if len(chain) == 0 {
		return nil, signerr.New(signerr.KindCertificateChain, "certificate chain is empty", nil)
	}
	for i, c := range chain {
		if c == nil {
			return nil, signerr.New(signerr.KindCertificateChain, fmt.Sprintf("certificate %d is nil", i), nil)
		}
	}

	if err := cryptoutils.EqualKeys(key.Public(), chain[0].PublicKey); err != nil {
		return nil, signerr.New(signerr.KindSigningKey,
			fmt.Sprintf("private key does not match signing certificate %s", chain[0].Subject), err)
	}
	if _, err := internalcrypto.HashFor(key.Public()); err != nil {
		return nil, signerr.New(signerr.KindSigningKey, "unsupported signing key", err)
	}

	s := &Signer{
		key:             key,
		chain:           append([]*x509.Certificate(nil), chain...),
		clock:           time.Now,
		digestAlgorithm: hashing.DefaultAlgorithm,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.EnsureLogger(s.logger)

	// Validity windows are checked at Sign time.
	if err := validateLinks(s.chain); err != nil {
		return nil, err
	}
	return s, nil
}

// Chain returns the signing chain, leaf first.
func (s *Signer) Chain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), s.chain...)
}

// Sign returns a signature file over manifestBytes.
//
// Every certificate of the chain must be valid at the signing time; the
// time is recorded in the signed statement.
func (s *Signer) Sign(ctx context.Context, manifestBytes []byte) ([]byte, error) {
	var out []byte
	err := tracing.Run(ctx, "signature.Sign", map[string]interface{}{
		"signer": Identity(s.chain[0]),
	}, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		signedAt := s.clock().UTC().Truncate(time.Second)
		if err := validateWindows(s.chain, signedAt); err != nil {
			return err
		}

		st, err := newStatement(manifestBytes, s.digestAlgorithm, signedAt)
		if err != nil {
			return err
		}
		payload, err := marshalStatement(st)
		if err != nil {
			return fmt.Errorf("failed to marshal statement: %w", err)
		}

		pae := internalcrypto.ComputePAE(InTotoJSONPayloadType, payload)
		sig, err := internalcrypto.Sign(s.key, pae)
		if err != nil {
			return signerr.New(signerr.KindSigningKey, "failed to sign manifest", err)
		}

		env := dsse.New(InTotoJSONPayloadType, payload, sig)
		out, err = encodeBlob(env, s.chain)
		if err != nil {
			return err
		}

		s.logger.Debug("Signed manifest (%d bytes) as %s", len(manifestBytes), Identity(s.chain[0]))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
