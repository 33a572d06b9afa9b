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

// Package keys supplies signing credentials and trust anchors.
//
// Signing and verification never read key material directly: they ask a
// KeyProvider for the credentials bound to an identifier and a
// TrustAnchorProvider for the roots signatures must chain to.
package keys

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
)

// Credentials is a signing key and its certificate chain, leaf first.
type Credentials struct {
	Signer crypto.Signer
	Chain  []*x509.Certificate
}

// KeyProvider resolves an identifier, such as a certificate name suffix, to
// signing credentials.
type KeyProvider interface {
	Credentials(ctx context.Context, identifier string) (*Credentials, error)
}

// TrustAnchorProvider returns the roots and optional intermediates used to
// validate signer chains.
type TrustAnchorProvider interface {
	TrustAnchors(ctx context.Context) (roots, intermediates []*x509.Certificate, err error)
}

// StaticKeyProvider returns the same credentials for every identifier.
type StaticKeyProvider struct {
	creds *Credentials
}

// NewStaticKeyProvider wraps creds.
func NewStaticKeyProvider(signer crypto.Signer, chain []*x509.Certificate) *StaticKeyProvider {
	return &StaticKeyProvider{creds: &Credentials{Signer: signer, Chain: chain}}
}

// Credentials implements KeyProvider.
func (p *StaticKeyProvider) Credentials(ctx context.Context, _ string) (*Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.creds.Signer == nil || len(p.creds.Chain) == 0 {
		return nil, fmt.Errorf("static credentials are incomplete")
	}
	return p.creds, nil
}

// StaticTrustAnchors returns fixed certificates.
type StaticTrustAnchors struct {
	Roots         []*x509.Certificate
	Intermediates []*x509.Certificate
}

// TrustAnchors implements TrustAnchorProvider.
func (s StaticTrustAnchors) TrustAnchors(ctx context.Context) ([]*x509.Certificate, []*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(s.Roots) == 0 {
		return nil, nil, fmt.Errorf("no trust anchors configured")
	}
	return s.Roots, s.Intermediates, nil
}
