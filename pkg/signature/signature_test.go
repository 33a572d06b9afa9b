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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"testing"
	"time"

	protobundle "github.com/sigstore/protobuf-specs/gen/pb-go/bundle/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/sigstore/pass-signing/internal/testpki"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

var testManifest = []byte("{\n  \"a.txt\": \"sha256:00\"\n}\n")

func trustFor(t *testing.T, roots []*x509.Certificate, policy Policy) *TrustContext {
	t.Helper()
	tc, err := NewTrustContext(roots, nil, policy)
	if err != nil {
		t.Fatalf("NewTrustContext() error = %v", err)
	}
	return tc
}

func signWith(t *testing.T, leaf *testpki.Leaf, manifestBytes []byte, opts ...SignerOption) []byte {
	t.Helper()
	s, err := NewSigner(leaf.Key, leaf.Chain(), opts...)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	blob, err := s.Sign(context.Background(), manifestBytes)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return blob
}

func requireKind(t *testing.T, err error, kind signerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if !signerr.IsKind(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestSignVerify(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	inter := root.NewIntermediate(t, "Intermediate")

	tests := []struct {
		name string
		leaf *testpki.Leaf
	}{
		{name: "leaf under root", leaf: root.NewLeaf(t, "Direct Signer")},
		{name: "leaf under intermediate", leaf: inter.NewLeaf(t, "Pass Signer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := signWith(t, tt.leaf, testManifest)

			v, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if v.SignerIdentity != tt.leaf.Cert.Subject.String() {
				t.Errorf("SignerIdentity = %q, want %q", v.SignerIdentity, tt.leaf.Cert.Subject.String())
			}
			if !v.Leaf.Equal(tt.leaf.Cert) {
				t.Error("Leaf does not match the signing certificate")
			}
			if last := v.Chain[len(v.Chain)-1]; !last.Equal(root.Cert) {
				t.Errorf("chain ends at %s, want root", last.Subject)
			}
			if v.DigestAlgorithm != "sha256" {
				t.Errorf("DigestAlgorithm = %q, want sha256", v.DigestAlgorithm)
			}
		})
	}
}

func TestSignVerifyKeyTypes(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		leaf *testpki.Leaf
	}{
		{name: "ed25519", leaf: root.NewLeaf(t, "Ed Signer", testpki.WithKey(edKey))},
		{name: "rsa", leaf: root.NewLeaf(t, "RSA Signer", testpki.WithKey(rsaKey))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := signWith(t, tt.leaf, testManifest)
			if _, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{})); err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
		})
	}
}

func TestSignRecordsStatement(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	leaf := root.NewLeaf(t, "Signer")
	at := time.Now().Add(-10 * time.Minute).UTC().Truncate(time.Second)

	blob := signWith(t, leaf, testManifest, WithClock(func() time.Time { return at }), WithDigestAlgorithm("sha512"))

	b, err := ParseBlob(blob)
	if err != nil {
		t.Fatalf("ParseBlob() error = %v", err)
	}
	if !b.SignedAt.Equal(at) {
		t.Errorf("SignedAt = %v, want %v", b.SignedAt, at)
	}
	if b.DigestAlgorithm != "sha512" {
		t.Errorf("DigestAlgorithm = %q, want sha512", b.DigestAlgorithm)
	}
	if b.Envelope.PayloadType() != InTotoJSONPayloadType {
		t.Errorf("PayloadType = %q", b.Envelope.PayloadType())
	}
	if b.Statement.GetPredicateType() != PredicateType {
		t.Errorf("PredicateType = %q", b.Statement.GetPredicateType())
	}
	if len(b.Chain) != 1 || !b.Leaf().Equal(leaf.Cert) {
		t.Errorf("embedded chain does not start at the leaf")
	}
}

func TestVerifyTamperedManifest(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	leaf := root.NewLeaf(t, "Signer")
	blob := signWith(t, leaf, testManifest)

	tampered := append([]byte(nil), testManifest...)
	tampered[len(tampered)-4] ^= 0x01

	_, err := Verify(context.Background(), tampered, blob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
	requireKind(t, err, signerr.KindSignatureMismatch)
}

func TestVerifyTamperedSignature(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	leaf := root.NewLeaf(t, "Signer")
	blob := signWith(t, leaf, testManifest)

	pb := &protobundle.Bundle{}
	if err := protojson.Unmarshal(blob, pb); err != nil {
		t.Fatal(err)
	}
	sig := pb.GetDsseEnvelope().GetSignatures()[0]
	sig.Sig[len(sig.Sig)-1] ^= 0xff
	tamperedBlob, err := protojson.Marshal(pb)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Verify(context.Background(), testManifest, tamperedBlob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
	requireKind(t, err, signerr.KindSignatureMismatch)
}

func TestVerifySwappedLeaf(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	signer := root.NewLeaf(t, "Signer")
	other := root.NewLeaf(t, "Other")
	blob := signWith(t, signer, testManifest)

	pb := &protobundle.Bundle{}
	if err := protojson.Unmarshal(blob, pb); err != nil {
		t.Fatal(err)
	}
	pb.GetVerificationMaterial().GetX509CertificateChain().GetCertificates()[0].RawBytes = other.Cert.Raw
	swapped, err := protojson.Marshal(pb)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Verify(context.Background(), testManifest, swapped, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
	requireKind(t, err, signerr.KindSignatureMismatch)
}

func TestVerifyUntrusted(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	foreign := testpki.NewRootCA(t, "Foreign Root")
	leaf := root.NewLeaf(t, "Signer")
	blob := signWith(t, leaf, testManifest)

	t.Run("foreign anchor", func(t *testing.T) {
		_, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{foreign.Cert}, Policy{}))
		requireKind(t, err, signerr.KindUntrustedSigner)
	})

	t.Run("nil trust context", func(t *testing.T) {
		_, err := Verify(context.Background(), testManifest, blob, nil)
		requireKind(t, err, signerr.KindUntrustedSigner)
	})

	t.Run("zero trust context", func(t *testing.T) {
		_, err := Verify(context.Background(), testManifest, blob, &TrustContext{})
		requireKind(t, err, signerr.KindUntrustedSigner)
	})

	t.Run("extended key usage policy", func(t *testing.T) {
		policy := Policy{ExtKeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection}}
		_, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, policy))
		requireKind(t, err, signerr.KindUntrustedSigner)
	})
}

func TestVerifySigningUsage(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	leaf := root.NewLeaf(t, "TLS Server",
		testpki.WithKeyUsage(x509.KeyUsageKeyEncipherment),
		testpki.WithExtKeyUsage(x509.ExtKeyUsageServerAuth))
	blob := signWith(t, leaf, testManifest)

	_, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
	requireKind(t, err, signerr.KindUntrustedSigner)
}

func TestVerifyValidityTime(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	now := time.Now()
	leaf := root.NewLeaf(t, "Expired Signer",
		testpki.WithValidity(now.Add(-72*time.Hour), now.Add(-24*time.Hour)))
	blob := signWith(t, leaf, testManifest, WithClock(func() time.Time { return now.Add(-48 * time.Hour) }))

	t.Run("now", func(t *testing.T) {
		_, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, Policy{}))
		requireKind(t, err, signerr.KindUntrustedSigner)
	})

	t.Run("signing time", func(t *testing.T) {
		policy := Policy{ValidityTime: ValiditySigningTime}
		if _, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, policy)); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
	})

	t.Run("policy clock", func(t *testing.T) {
		policy := Policy{Clock: func() time.Time { return now.Add(-36 * time.Hour) }}
		if _, err := Verify(context.Background(), testManifest, blob, trustFor(t, []*x509.Certificate{root.Cert}, policy)); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
	})
}

func TestVerifyMalformed(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	trust := trustFor(t, []*x509.Certificate{root.Cert}, Policy{})

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "empty", blob: nil},
		{name: "not json", blob: []byte("not a bundle")},
		{name: "no envelope", blob: []byte(`{"mediaType":"application/vnd.dev.sigstore.bundle.v0.3+json"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(context.Background(), testManifest, tt.blob, trust)
			requireKind(t, err, signerr.KindMalformedBundle)
		})
	}
}

func TestVerifyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Verify(ctx, testManifest, []byte("x"), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Verify() error = %v, want context.Canceled", err)
	}
}

func TestNewSignerErrors(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	inter := root.NewIntermediate(t, "Intermediate")
	leaf := inter.NewLeaf(t, "Signer")
	other := root.NewLeaf(t, "Other")
	unrelated := testpki.NewRootCA(t, "Unrelated").NewIntermediate(t, "Unrelated Intermediate")

	tests := []struct {
		name  string
		build func() error
		kind  signerr.Kind
	}{
		{
			name: "nil key",
			build: func() error {
				_, err := NewSigner(nil, leaf.Chain())
				return err
			},
			kind: signerr.KindSigningKey,
		},
		{
			name: "empty chain",
			build: func() error {
				_, err := NewSigner(leaf.Key, nil)
				return err
			},
			kind: signerr.KindCertificateChain,
		},
		{
			name: "key mismatch",
			build: func() error {
				_, err := NewSigner(other.Key, leaf.Chain())
				return err
			},
			kind: signerr.KindSigningKey,
		},
		{
			name: "broken link",
			build: func() error {
				_, err := NewSigner(leaf.Key, []*x509.Certificate{leaf.Cert, unrelated.Cert})
				return err
			},
			kind: signerr.KindCertificateChain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireKind(t, tt.build(), tt.kind)
		})
	}
}

func TestSignExpiredLeaf(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	now := time.Now()
	leaf := root.NewLeaf(t, "Expired", testpki.WithValidity(now.Add(-48*time.Hour), now.Add(-time.Hour)))

	s, err := NewSigner(leaf.Key, leaf.Chain())
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	_, err = s.Sign(context.Background(), testManifest)
	requireKind(t, err, signerr.KindCertificateChain)
}

func TestNewTrustContext(t *testing.T) {
	if _, err := NewTrustContext(nil, nil, Policy{}); err == nil {
		t.Error("NewTrustContext() with no roots expected error")
	}
	if _, err := NewTrustContext([]*x509.Certificate{nil}, nil, Policy{}); err == nil {
		t.Error("NewTrustContext() with nil root expected error")
	}
}

func TestParseValidityTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ValidityTime
		wantErr bool
	}{
		{in: "", want: ValidityNow},
		{in: "now", want: ValidityNow},
		{in: "signing", want: ValiditySigningTime},
		{in: "later", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseValidityTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseValidityTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValidityTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && tt.in != "" && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}
