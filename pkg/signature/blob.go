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

	intoto "github.com/in-toto/attestation/go/v1"
	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/sigstore/pass-signing/pkg/dsse"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// Blob is a decoded signature file.
//
// The signature file is a Sigstore bundle (protojson) holding a DSSE
// envelope over an in-toto statement, and the x509 chain leaf first.
type Blob struct {
	// Envelope is the DSSE envelope.
	Envelope *dsse.Envelope

	// Payload is the raw statement bytes the signature covers.
	Payload []byte

	// Signature is the raw signature over PAE(payloadType, Payload).
	Signature []byte

	// Statement is the decoded in-toto statement.
	Statement *intoto.Statement

	// Chain is the embedded certificate chain, leaf first.
	Chain []*x509.Certificate

	// SignedAt is the signing time asserted by the signer, zero if absent.
	SignedAt time.Time

	// DigestAlgorithm is the manifest digest algorithm asserted by the signer.
	DigestAlgorithm string
}

// Leaf returns the signing certificate.
func (b *Blob) Leaf() *x509.Certificate {
	return b.Chain[0]
}

// encodeBlob serializes an envelope and chain as a Sigstore bundle.
func encodeBlob(env *dsse.Envelope, chain []*x509.Certificate) ([]byte, error) {
	protoEnvelope, err := env.ToProtobuf()
	if err != nil {
		return nil, fmt.Errorf("failed to convert envelope to protobuf: %w", err)
	}

	certificates := make([]*protocommon.X509Certificate, 0, len(chain))
	for _, cert := range chain {
		certificates = append(certificates, &protocommon.X509Certificate{RawBytes: cert.Raw})
	}

	protoBundle := &protobundle.Bundle{
		MediaType: BundleMediaType,
		VerificationMaterial: &protobundle.VerificationMaterial{
			Content: &protobundle.VerificationMaterial_X509CertificateChain{
				X509CertificateChain: &protocommon.X509CertificateChain{
					Certificates: certificates,
				},
			},
		},
		Content: &protobundle.Bundle_DsseEnvelope{
			DsseEnvelope: protoEnvelope,
		},
	}

	jsonBytes, err := protojson.Marshal(protoBundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle to JSON: %w", err)
	}
	return jsonBytes, nil
}

// ParseBlob decodes a signature file without verifying it.
//
// Any structural problem is a MalformedBundle error: invalid JSON, a missing
// envelope, anything other than exactly one signature, a foreign payload or
// predicate type, or an unparsable certificate chain.
func ParseBlob(data []byte) (*Blob, error) {
	if len(data) == 0 {
		return nil, malformed("signature is empty", nil)
	}

	protoBundle := &protobundle.Bundle{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, protoBundle); err != nil {
		return nil, malformed("failed to unmarshal signature bundle", err)
	}

	env, err := dsse.FromProtobuf(protoBundle.GetDsseEnvelope())
	if err != nil {
		return nil, malformed("signature bundle does not contain a DSSE envelope", err)
	}
	payload, sig, err := env.Open(InTotoJSONPayloadType)
	if err != nil {
		return nil, malformed("invalid DSSE envelope", err)
	}

	st, err := unmarshalStatement(payload)
	if err != nil {
		return nil, malformed("invalid signed statement", err)
	}

	chain, err := chainFromMaterial(protoBundle.GetVerificationMaterial())
	if err != nil {
		return nil, malformed("invalid verification material", err)
	}

	b := &Blob{
		Envelope:        env,
		Payload:         payload,
		Signature:       sig,
		Statement:       st,
		Chain:           chain,
		DigestAlgorithm: predicateString(st, "digestAlgorithm"),
	}
	if ts := predicateString(st, "signedAt"); ts != "" {
		signedAt, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, malformed("invalid signing time", err)
		}
		b.SignedAt = signedAt
	}
	return b, nil
}

func chainFromMaterial(vm *protobundle.VerificationMaterial) ([]*x509.Certificate, error) {
	if vm == nil {
		return nil, fmt.Errorf("verification material is missing")
	}
	certChain := vm.GetX509CertificateChain()
	if certChain == nil || len(certChain.GetCertificates()) == 0 {
		return nil, fmt.Errorf("no certificates found in verification material")
	}

	chain := make([]*x509.Certificate, 0, len(certChain.GetCertificates()))
	for i, c := range certChain.GetCertificates() {
		cert, err := x509.ParseCertificate(c.GetRawBytes())
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

func malformed(msg string, cause error) error {
	return signerr.New(signerr.KindMalformedBundle, msg, cause)
}
