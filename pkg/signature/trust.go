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

package signature

import (
	"crypto/x509"
	"fmt"
	"time"
)

// ValidityTime selects the instant at which chain validity is evaluated.
type ValidityTime int

const (
	// ValidityNow checks certificate validity at verification time.
	ValidityNow ValidityTime = iota

	// ValiditySigningTime checks certificate validity at the signing time
	// recorded in the signature. The recorded time is signed but
	// self-asserted by the signer.
	ValiditySigningTime
)

// String returns the flag value for the validity mode.
func (v ValidityTime) String() string {
	switch v {
	case ValiditySigningTime:
		return "signing"
	default:
		return "now"
	}
}

// ParseValidityTime parses "now" or "signing".
func ParseValidityTime(s string) (ValidityTime, error) {
	switch s {
	case "", "now":
		return ValidityNow, nil
	case "signing":
		return ValiditySigningTime, nil
	default:
		return ValidityNow, fmt.Errorf("unknown validity time %q (expected now or signing)", s)
	}
}

// Policy tunes chain validation.
type Policy struct {
	// ExtKeyUsages constrains the extended key usages accepted along the
	// chain. Empty accepts any usage.
	ExtKeyUsages []x509.ExtKeyUsage

	// ValidityTime selects when certificate validity is evaluated.
	ValidityTime ValidityTime

	// Clock overrides the current time. Nil uses time.Now.
	Clock func() time.Time

	// CheckRevocation requires a revocation check of the leaf. Verification
	// fails closed when no Revocation checker is configured.
	CheckRevocation bool

	// Revocation checks the leaf against its issuer.
	Revocation RevocationChecker
}

func (p Policy) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// TrustContext holds the anchors and policy signatures are verified against.
// It is immutable after construction and safe for concurrent use.
type TrustContext struct {
	roots         *x509.CertPool
	intermediates []*x509.Certificate
	policy        Policy
	rootCount     int
}

// NewTrustContext builds a TrustContext. At least one root is required.
func NewTrustContext(roots, intermediates []*x509.Certificate, policy Policy) (*TrustContext, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one trust anchor is required")
	}

	pool := x509.NewCertPool()
	for _, r := range roots {
		if r == nil {
			return nil, fmt.Errorf("trust anchor must not be nil")
		}
		pool.AddCert(r)
	}

	ints := make([]*x509.Certificate, 0, len(intermediates))
	for _, c := range intermediates {
		if c != nil {
			ints = append(ints, c)
		}
	}

	p := policy
	p.ExtKeyUsages = append([]x509.ExtKeyUsage(nil), policy.ExtKeyUsages...)

	return &TrustContext{
		roots:         pool,
		intermediates: ints,
		policy:        p,
		rootCount:     len(roots),
	}, nil
}

// Policy returns the validation policy.
func (tc *TrustContext) Policy() Policy {
	return tc.policy
}

func (tc *TrustContext) empty() bool {
	return tc == nil || tc.roots == nil || tc.rootCount == 0
}

// verifyOptions builds x509 options for a chain whose extra certificates are
// supplied with the signature.
func (tc *TrustContext) verifyOptions(embedded []*x509.Certificate, at time.Time) x509.VerifyOptions {
	pool := x509.NewCertPool()
	for _, c := range embedded {
		pool.AddCert(c)
	}
	for _, c := range tc.intermediates {
		pool.AddCert(c)
	}

	usages := tc.policy.ExtKeyUsages
	if len(usages) == 0 {
		usages = []x509.ExtKeyUsage{x509.ExtKeyUsageAny}
	}

	return x509.VerifyOptions{
		Roots:         tc.roots,
		Intermediates: pool,
		CurrentTime:   at,
		KeyUsages:     usages,
	}
}
