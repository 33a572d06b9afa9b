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
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/sigstore/pass-signing/pkg/signerr"
)

// ParseCertificates parses one or more PEM certificates, falling back to a
// single DER certificate when no PEM block is present.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	if certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data); err == nil && len(certs) > 0 {
		return certs, nil
	}

	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate (tried both PEM and DER formats): %w", err)
	}
	return []*x509.Certificate{cert}, nil
}

// LoadCertificates reads and parses every certificate in paths, in order.
func LoadCertificates(paths ...string) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for _, p := range paths {
		//nolint:gosec
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file %s: %w", p, err)
		}
		certs, err := ParseCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificates from %s: %w", p, err)
		}
		out = append(out, certs...)
	}
	return out, nil
}

// Fingerprint returns the uppercase hex SHA-256 of the DER certificate.
func Fingerprint(cert *x509.Certificate) string {
	return fmt.Sprintf("%X", sha256.Sum256(cert.Raw))
}

// Identity returns the subject distinguished name in RFC 2253 form.
func Identity(cert *x509.Certificate) string {
	return cert.Subject.String()
}

// ValidateChain checks that chain is an issuance path starting at the leaf:
// each certificate names and is signed by its successor, and every
// certificate is valid at t.
func ValidateChain(chain []*x509.Certificate, t time.Time) error {
	if err := validateLinks(chain); err != nil {
		return err
	}
	return validateWindows(chain, t)
}

func validateLinks(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return signerr.New(signerr.KindCertificateChain, "certificate chain is empty", nil)
	}
	for i := 0; i < len(chain)-1; i++ {
		cert, issuer := chain[i], chain[i+1]
		if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
			return signerr.New(signerr.KindCertificateChain,
				fmt.Sprintf("certificate %d (%s) is not issued by %s", i, cert.Subject, issuer.Subject), nil)
		}
		if err := cert.CheckSignatureFrom(issuer); err != nil {
			return signerr.New(signerr.KindCertificateChain,
				fmt.Sprintf("certificate %d (%s) is not signed by %s", i, cert.Subject, issuer.Subject), err)
		}
	}
	return nil
}

func validateWindows(chain []*x509.Certificate, t time.Time) error {
	for i, cert := range chain {
		if t.Before(cert.NotBefore) || t.After(cert.NotAfter) {
			return signerr.New(signerr.KindCertificateChain,
				fmt.Sprintf("certificate %d (%s) is not valid at %s (valid %s to %s)",
					i, cert.Subject, t.UTC().Format(time.RFC3339),
					cert.NotBefore.UTC().Format(time.RFC3339), cert.NotAfter.UTC().Format(time.RFC3339)), nil)
		}
	}
	return nil
}

// validateSigningUsage checks that cert may sign: DigitalSignature key usage
// or the CodeSigning extended key usage.
func validateSigningUsage(cert *x509.Certificate) error {
	if cert.KeyUsage&x509.KeyUsageDigitalSignature != 0 {
		return nil
	}
	for _, usage := range cert.ExtKeyUsage {
		if usage == x509.ExtKeyUsageCodeSigning {
			return nil
		}
	}
	return fmt.Errorf("signing certificate cannot be used for signing (missing DigitalSignature KeyUsage or CodeSigning ExtKeyUsage)")
}
