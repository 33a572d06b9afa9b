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
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/ocsp"
)

// ErrRevoked reports a certificate listed as revoked by its issuer.
var ErrRevoked = errors.New("certificate has been revoked")

// RevocationChecker reports whether cert, issued by issuer, is revoked.
// Implementations return nil only for a positive "not revoked" answer.
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error
}

// CRLChecker checks certificates against a fixed set of revocation lists.
type CRLChecker struct {
	lists []*x509.RevocationList
	clock func() time.Time
}

// NewCRLChecker returns a checker over lists. A nil clock uses time.Now.
func NewCRLChecker(lists []*x509.RevocationList, clock func() time.Time) *CRLChecker {
	if clock == nil {
		clock = time.Now
	}
	return &CRLChecker{lists: lists, clock: clock}
}

// ParseCRL parses a revocation list in PEM ("X509 CRL") or DER form.
func ParseCRL(data []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "X509 CRL" {
			return nil, fmt.Errorf("unexpected PEM block type %q, expected X509 CRL", block.Type)
		}
		data = block.Bytes
	}
	crl, err := x509.ParseRevocationList(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	return crl, nil
}

// LoadCRLs reads and parses revocation lists from files.
func LoadCRLs(paths ...string) ([]*x509.RevocationList, error) {
	lists := make([]*x509.RevocationList, 0, len(paths))
	for _, p := range paths {
		//nolint:gosec
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read CRL file %s: %w", p, err)
		}
		crl, err := ParseCRL(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		lists = append(lists, crl)
	}
	return lists, nil
}

// CheckRevocation implements RevocationChecker. The newest valid list from
// the issuer decides; a certificate with no authoritative, current CRL is
// treated as unverifiable.
func (c *CRLChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var latest *x509.RevocationList
	for _, crl := range c.lists {
		if !bytes.Equal(crl.RawIssuer, issuer.RawSubject) {
			continue
		}
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			return fmt.Errorf("CRL from %s has an invalid signature: %w", issuer.Subject, err)
		}
		if latest == nil || crl.ThisUpdate.After(latest.ThisUpdate) {
			latest = crl
		}
	}
	if latest == nil {
		return fmt.Errorf("no CRL available for issuer %s", issuer.Subject)
	}
	if err := checkFreshness("CRL from "+issuer.Subject.String(), latest.ThisUpdate, latest.NextUpdate, c.clock()); err != nil {
		return err
	}

	for _, entry := range latest.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return fmt.Errorf("%w: serial %s revoked at %s", ErrRevoked,
				cert.SerialNumber, entry.RevocationTime.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

const (
	// maxClockSkew tolerates issuers whose clock runs ahead of ours.
	maxClockSkew = 5 * time.Minute
	// maxRevocationAge bounds answers that carry no next update time.
	maxRevocationAge = 7 * 24 * time.Hour
)

// checkFreshness rejects revocation data issued in the future, past its
// next update, or older than maxRevocationAge when no next update is set.
func checkFreshness(what string, thisUpdate, nextUpdate, now time.Time) error {
	switch {
	case thisUpdate.After(now.Add(maxClockSkew)):
		return fmt.Errorf("%s is not yet valid (this update %s)", what, thisUpdate.UTC().Format(time.RFC3339))
	case !nextUpdate.IsZero() && now.After(nextUpdate):
		return fmt.Errorf("%s is stale (next update %s)", what, nextUpdate.UTC().Format(time.RFC3339))
	case nextUpdate.IsZero() && now.Sub(thisUpdate) > maxRevocationAge:
		return fmt.Errorf("%s is too old (this update %s)", what, thisUpdate.UTC().Format(time.RFC3339))
	}
	return nil
}

// maxOCSPResponseSize bounds responder replies.
const maxOCSPResponseSize = 1 << 20

// OCSPChecker queries the OCSP responder named in the certificate.
type OCSPChecker struct {
	client *http.Client
	clock  func() time.Time
}

// NewOCSPChecker returns a checker using client, or a client with a 10s
// timeout when nil. A nil clock uses time.Now.
func NewOCSPChecker(client *http.Client, clock func() time.Time) *OCSPChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if clock == nil {
		clock = time.Now
	}
	return &OCSPChecker{client: client, clock: clock}
}

// CheckRevocation implements RevocationChecker. Unknown status, stale
// answers, unreachable responders and certificates without a responder URL
// all fail.
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if len(cert.OCSPServer) == 0 {
		return fmt.Errorf("certificate %s names no OCSP responder", cert.Subject)
	}

	reqBytes, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}

	server := cert.OCSPServer[0]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build OCSP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("OCSP responder %s unreachable: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCSP responder %s returned HTTP %d", server, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read OCSP response: %w", err)
	}

	parsed, err := ocsp.ParseResponseForCert(body, cert, issuer)
	if err != nil {
		return fmt.Errorf("invalid OCSP response: %w", err)
	}
	if err := checkFreshness("OCSP response from "+server, parsed.ThisUpdate, parsed.NextUpdate, c.clock()); err != nil {
		return err
	}

	switch parsed.Status {
	case ocsp.Good:
		return nil
	case ocsp.Revoked:
		return fmt.Errorf("%w: serial %s revoked at %s", ErrRevoked,
			cert.SerialNumber, parsed.RevokedAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Errorf("OCSP status for serial %s is unknown", cert.SerialNumber)
	}
}

// AllCheckers requires every checker to report cert as not revoked.
type AllCheckers []RevocationChecker

// CheckRevocation implements RevocationChecker. The first failure wins.
func (a AllCheckers) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if len(a) == 0 {
		return errors.New("no revocation checkers configured")
	}
	for _, c := range a {
		if err := c.CheckRevocation(ctx, cert, issuer); err != nil {
			return err
		}
	}
	return nil
}
