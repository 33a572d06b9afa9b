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
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	internalcrypto "github.com/sigstore/pass-signing/internal/crypto"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// Verification is the outcome of a successful signature check.
type Verification struct {
	// SignerIdentity is the leaf subject in RFC 2253 form.
	SignerIdentity string

	// Leaf is the signing certificate.
	Leaf *x509.Certificate

	// Chain is the validated path from the leaf to a trust anchor.
	Chain []*x509.Certificate

	// SignedAt is the signing time recorded in the signature.
	SignedAt time.Time

	// DigestAlgorithm is the manifest digest algorithm recorded by the signer.
	DigestAlgorithm string
}

// Verify checks that blob is a signature over exactly manifestBytes by a
// signer trusted under trust.
//
// The checks run in order and the first failure is returned:
//   - the blob must parse (MalformedBundle);
//   - the DSSE signature must verify with the leaf key (SignatureMismatch);
//   - the signed subject digest must match manifestBytes (SignatureMismatch);
//   - the chain must validate against trust (UntrustedSigner).
//
// A nil or empty TrustContext rejects every signature.
func Verify(ctx context.Context, manifestBytes, blob []byte, trust *TrustContext) (*Verification, error) {
	var out *Verification
	err := tracing.Run(ctx, "signature.Verify", nil, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := ParseBlob(blob)
		if err != nil {
			return err
		}
		leaf := b.Leaf()

		pae := internalcrypto.ComputePAE(b.Envelope.PayloadType(), b.Payload)
		if err := internalcrypto.VerifySignature(leaf.PublicKey, pae, b.Signature); err != nil {
			return signerr.New(signerr.KindSignatureMismatch, "signature does not verify with the signing certificate", err)
		}

		want, err := manifestSubjectDigest(b.Statement)
		if err != nil {
			return signerr.New(signerr.KindSignatureMismatch, "signed statement does not cover a manifest", err)
		}
		sum := sha256.Sum256(manifestBytes)
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(want)), []byte(hex.EncodeToString(sum[:]))) != 1 {
			return signerr.New(signerr.KindSignatureMismatch,
				fmt.Sprintf("signature covers manifest sha256:%s, got sha256:%x", want, sum), nil)
		}

		chain, err := verifyTrust(ctx, b, trust)
		if err != nil {
			return err
		}

		out = &Verification{
			SignerIdentity:  Identity(leaf),
			Leaf:            leaf,
			Chain:           chain,
			SignedAt:        b.SignedAt,
			DigestAlgorithm: b.DigestAlgorithm,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func verifyTrust(ctx context.Context, b *Blob, trust *TrustContext) ([]*x509.Certificate, error) {
	if trust.empty() {
		return nil, untrusted("no trust anchors configured", nil)
	}
	policy := trust.Policy()

	at := policy.now()
	if policy.ValidityTime == ValiditySigningTime {
		if b.SignedAt.IsZero() {
			return nil, untrusted("signature does not record a signing time", nil)
		}
		at = b.SignedAt
	}

	leaf := b.Leaf()
	chains, err := leaf.Verify(trust.verifyOptions(b.Chain[1:], at))
	if err != nil {
		return nil, untrusted("certificate chain does not validate against the trust anchors", err)
	}
	chain := chains[0]

	if err := validateSigningUsage(leaf); err != nil {
		return nil, untrusted("signing certificate usage", err)
	}

	if policy.CheckRevocation {
		if policy.Revocation == nil {
			return nil, untrusted("revocation checking is required but no checker is configured", nil)
		}
		if len(chain) < 2 {
			return nil, untrusted("cannot check revocation of a self-signed signing certificate", nil)
		}
		// The anchor closing the chain is trusted as configured.
		for i := 0; i < len(chain)-1; i++ {
			if err := policy.Revocation.CheckRevocation(ctx, chain[i], chain[i+1]); err != nil {
				return nil, untrusted(fmt.Sprintf("revocation check failed for %s", chain[i].Subject), err)
			}
		}
	}
	return chain, nil
}

func untrusted(msg string, cause error) error {
	return signerr.New(signerr.KindUntrustedSigner, msg, cause)
}
