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

// Package testpki builds throwaway certificate hierarchies for tests.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"golang.org/x/crypto/ocsp"
)

// CA is a certificate authority with its signing key.
type CA struct {
	Cert   *x509.Certificate
	Key    crypto.Signer
	parent *CA
}

// Leaf is an end-entity certificate with its private key.
type Leaf struct {
	Cert   *x509.Certificate
	Key    crypto.Signer
	issuer *CA
}

// NewRootCA creates a self-signed root valid from a week ago for a year.
func NewRootCA(t testing.TB, name string) *CA {
	t.Helper()

	key := newKey(t)
	tmpl := caTemplate(t, name)
	cert := create(t, tmpl, tmpl, key.Public(), key)
	return &CA{Cert: cert, Key: key}
}

// NewIntermediate creates a CA issued by ca.
func (ca *CA) NewIntermediate(t testing.TB, name string) *CA {
	t.Helper()

	key := newKey(t)
	cert := create(t, caTemplate(t, name), ca.Cert, key.Public(), ca.Key)
	return &CA{Cert: cert, Key: key, parent: ca}
}

// LeafOption customizes a leaf certificate.
type LeafOption func(*leafConfig)

type leafConfig struct {
	notBefore   time.Time
	notAfter    time.Time
	keyUsage    x509.KeyUsage
	extKeyUsage []x509.ExtKeyUsage
	ocspServer  string
	key         crypto.Signer
}

// WithValidity sets the leaf validity window.
func WithValidity(notBefore, notAfter time.Time) LeafOption {
	return func(c *leafConfig) {
		c.notBefore = notBefore
		c.notAfter = notAfter
	}
}

// WithKeyUsage replaces the default DigitalSignature key usage.
func WithKeyUsage(ku x509.KeyUsage) LeafOption {
	return func(c *leafConfig) {
		c.keyUsage = ku
	}
}

// WithExtKeyUsage replaces the default CodeSigning extended key usage.
func WithExtKeyUsage(usages ...x509.ExtKeyUsage) LeafOption {
	return func(c *leafConfig) {
		c.extKeyUsage = usages
	}
}

// WithOCSPServer sets the responder URL embedded in the leaf.
func WithOCSPServer(url string) LeafOption {
	return func(c *leafConfig) {
		c.ocspServer = url
	}
}

// WithKey certifies key instead of a fresh P-256 key.
func WithKey(key crypto.Signer) LeafOption {
	return func(c *leafConfig) {
		c.key = key
	}
}

// NewLeaf issues an end-entity certificate from ca.
func (ca *CA) NewLeaf(t testing.TB, name string, opts ...LeafOption) *Leaf {
	t.Helper()

	now := time.Now()
	cfg := &leafConfig{
		notBefore:   now.Add(-time.Hour),
		notAfter:    now.Add(24 * time.Hour),
		keyUsage:    x509.KeyUsageDigitalSignature,
		extKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.key == nil {
		cfg.key = newKey(t)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name, Organization: []string{"Pass Signing Test"}},
		NotBefore:             cfg.notBefore,
		NotAfter:              cfg.notAfter,
		KeyUsage:              cfg.keyUsage,
		ExtKeyUsage:           cfg.extKeyUsage,
		BasicConstraintsValid: true,
	}
	if cfg.ocspServer != "" {
		tmpl.OCSPServer = []string{cfg.ocspServer}
	}

	cert := create(t, tmpl, ca.Cert, cfg.key.Public(), ca.Key)
	return &Leaf{Cert: cert, Key: cfg.key, issuer: ca}
}

// Chain returns the leaf followed by its intermediates, without the root.
func (l *Leaf) Chain() []*x509.Certificate {
	chain := []*x509.Certificate{l.Cert}
	for ca := l.issuer; ca != nil && ca.parent != nil; ca = ca.parent {
		chain = append(chain, ca.Cert)
	}
	return chain
}

// Issuer returns the CA that issued the leaf.
func (l *Leaf) Issuer() *CA {
	return l.issuer
}

// CRL returns a DER revocation list signed by ca listing revoked, issued an
// hour ago and valid until nextUpdate.
func (ca *CA) CRL(t testing.TB, nextUpdate time.Time, revoked ...*x509.Certificate) []byte {
	t.Helper()
	return ca.CRLAt(t, time.Now().Add(-time.Hour), nextUpdate, revoked...)
}

// CRLAt is CRL with an explicit issue time.
func (ca *CA) CRLAt(t testing.TB, thisUpdate, nextUpdate time.Time, revoked ...*x509.Certificate) []byte {
	t.Helper()

	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, c := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   c.SerialNumber,
			RevocationTime: time.Now().Add(-time.Minute),
		})
	}

	der, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    big.NewInt(thisUpdate.Unix()),
		ThisUpdate:                thisUpdate,
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: entries,
	}, ca.Cert, ca.Key)
	if err != nil {
		t.Fatalf("failed to create CRL: %v", err)
	}
	return der
}

// OCSPResponder starts an HTTP responder answering for certificates issued
// by ca. status maps a serial number to ocsp.Good, ocsp.Revoked or
// ocsp.Unknown. The server is closed when the test ends.
func (ca *CA) OCSPResponder(t testing.TB, status func(serial *big.Int) int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		now := time.Now()
		tmpl := ocsp.Response{
			Status:       status(req.SerialNumber),
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(time.Hour),
		}
		if tmpl.Status == ocsp.Revoked {
			tmpl.RevokedAt = now.Add(-time.Minute)
			tmpl.RevocationReason = ocsp.KeyCompromise
		}

		resp, err := ocsp.CreateResponse(ca.Cert, ca.Cert, tmpl, ca.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// WritePEM writes certs as a PEM file in dir and returns its path.
func WritePEM(t testing.TB, dir, name string, certs ...*x509.Certificate) string {
	t.Helper()

	data, err := cryptoutils.MarshalCertificatesToPEM(certs)
	if err != nil {
		t.Fatalf("failed to encode certificates: %v", err)
	}
	return writeFile(t, dir, name, data)
}

// WriteKeyPEM writes an unencrypted PKCS#8 private key in dir and returns
// its path.
func WriteKeyPEM(t testing.TB, dir, name string, key crypto.PrivateKey) string {
	t.Helper()

	data, err := cryptoutils.MarshalPrivateKeyToPEM(key)
	if err != nil {
		t.Fatalf("failed to encode private key: %v", err)
	}
	return writeFile(t, dir, name, data)
}

func writeFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

func caTemplate(t testing.TB, name string) *x509.Certificate {
	t.Helper()

	now := time.Now()
	return &x509.Certificate{
		SerialNumber:          serial(t),
		Subject:               pkix.Name{CommonName: name, Organization: []string{"Pass Signing Test"}},
		NotBefore:             now.Add(-7 * 24 * time.Hour),
		NotAfter:              now.Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
}

func create(t testing.TB, tmpl, parent *x509.Certificate, pub crypto.PublicKey, priv crypto.Signer) *x509.Certificate {
	t.Helper()

	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, priv)
	if err != nil {
		t.Fatalf("failed to create certificate %s: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return cert
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func serial(t testing.TB) *big.Int {
	t.Helper()

	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatalf("failed to generate serial: %v", err)
	}
	return n.Add(n, big.NewInt(1))
}
