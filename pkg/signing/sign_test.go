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

package signing

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sigstore/pass-signing/internal/testpki"
	"github.com/sigstore/pass-signing/pkg/bundle"
	"github.com/sigstore/pass-signing/pkg/keys"
	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/metrics"
	"github.com/sigstore/pass-signing/pkg/signature"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newSource(t *testing.T, files map[string]string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	writeTree(t, src, files)
	return src
}

func assertAbsent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("%s should not exist (stat error = %v)", path, err)
	}
}

func TestSign(t *testing.T) {
	root := testpki.NewRootCA(t, "Root")
	leaf := root.NewIntermediate(t, "Intermediate").NewLeaf(t, "pass.com.example.tickets")
	// Within the leaf's validity window, which testpki anchors to time.Now.
	signedAt := leaf.Cert.NotBefore.Add(time.Minute).UTC()

	src := newSource(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
	dest := filepath.Join(t.TempDir(), "out.pkpass")
	m := metrics.New()

	res, err := Sign(context.Background(), Options{
		Source:      src,
		Destination: dest,
		Identifier:  "tickets",
		Keys:        keys.NewStaticKeyProvider(leaf.Key, leaf.Chain()),
		Clock:       func() time.Time { return signedAt },
		Metrics:     m,
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !res.Signed || res.Entries != 2 || res.Format != bundle.FormatZip {
		t.Errorf("Result = %+v", res)
	}
	if res.SignerIdentity != signature.Identity(leaf.Cert) {
		t.Errorf("SignerIdentity = %q", res.SignerIdentity)
	}
	if !strings.Contains(res.Message, "Signed 2 file(s)") {
		t.Errorf("Message = %q", res.Message)
	}

	man, err := manifest.Parse(res.Manifest)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if want := []string{"a.txt", "b.txt"}; !reflect.DeepEqual(man.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", man.Paths(), want)
	}

	u, err := bundle.Unpack(context.Background(), dest)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	defer u.Close()
	if !bytes.Equal(u.Manifest, res.Manifest) {
		t.Error("packaged manifest differs from the signed one")
	}

	tc, err := signature.NewTrustContext([]*x509.Certificate{root.Cert}, nil, signature.Policy{})
	if err != nil {
		t.Fatal(err)
	}
	ver, err := signature.Verify(context.Background(), u.Manifest, u.Signature, tc)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ver.SignedAt.Equal(signedAt) {
		t.Errorf("SignedAt = %v, want %v", ver.SignedAt, signedAt)
	}

	expected := `
# HELP pass_signing_entries_digested_total Bundle entries digested
# TYPE pass_signing_entries_digested_total counter
pass_signing_entries_digested_total 2
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "pass_signing_entries_digested_total"); err != nil {
		t.Error(err)
	}
}

func TestSignFormats(t *testing.T) {
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	src := newSource(t, map[string]string{"pass.json": "{}", "images/icon.png": "png"})

	for _, tc := range []struct {
		dest   string
		format bundle.Format
		want   bundle.Format
	}{
		{"out", bundle.FormatAuto, bundle.FormatDirectory},
		{"out.tgz", bundle.FormatAuto, bundle.FormatTarGz},
		{"forced", bundle.FormatZip, bundle.FormatZip},
	} {
		t.Run(tc.dest, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), tc.dest)
			res, err := Sign(context.Background(), Options{
				Source:      src,
				Destination: dest,
				Keys:        keys.NewStaticKeyProvider(leaf.Key, leaf.Chain()),
				Format:      tc.format,
			})
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if res.Format != tc.want {
				t.Errorf("Format = %s, want %s", res.Format, tc.want)
			}

			got, err := bundle.DetectFormat(dest)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSignReservedNames(t *testing.T) {
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	src := newSource(t, map[string]string{"a.txt": "hello", "signature": "stale"})
	provider := keys.NewStaticKeyProvider(leaf.Key, leaf.Chain())

	dest := filepath.Join(t.TempDir(), "out")
	res, err := Sign(context.Background(), Options{Source: src, Destination: dest, Keys: provider})
	if !errors.Is(err, signerr.ErrReservedNameCollision) {
		t.Fatalf("Sign() error = %v, want ReservedNameCollisionError", err)
	}
	if res.Signed || !strings.Contains(res.Message, "Signing failed") {
		t.Errorf("Result = %+v", res)
	}
	assertAbsent(t, dest)

	res, err = Sign(context.Background(), Options{Source: src, Destination: dest, Keys: provider, ReplaceExisting: true})
	if err != nil {
		t.Fatalf("Sign() with ReplaceExisting error = %v", err)
	}
	if !reflect.DeepEqual(res.Replaced, []string{"signature"}) || res.Entries != 1 {
		t.Errorf("Replaced = %v, Entries = %d", res.Replaced, res.Entries)
	}
}

func TestSignIgnorePaths(t *testing.T) {
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	src := newSource(t, map[string]string{"a.txt": "hello", ".git/HEAD": "ref", "manifest.json": "{}"})

	res, err := Sign(context.Background(), Options{
		Source:      src,
		Destination: filepath.Join(t.TempDir(), "out.zip"),
		Keys:        keys.NewStaticKeyProvider(leaf.Key, leaf.Chain()),
		IgnorePaths: []string{".git", "manifest.json"},
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if res.Entries != 1 || len(res.Replaced) != 0 {
		t.Errorf("Entries = %d, Replaced = %v", res.Entries, res.Replaced)
	}
}

type failingProvider struct{}

func (failingProvider) Credentials(context.Context, string) (*keys.Credentials, error) {
	return nil, errors.New("no such identifier")
}

func TestSignCredentialFailure(t *testing.T) {
	src := newSource(t, map[string]string{"a.txt": "hello"})
	dest := filepath.Join(t.TempDir(), "out")

	m := metrics.New()
	_, err := Sign(context.Background(), Options{Source: src, Destination: dest, Keys: failingProvider{}, Metrics: m})
	if !signerr.IsKind(err, signerr.KindSigningKey) {
		t.Fatalf("Sign() error = %v, want SigningKeyError", err)
	}
	assertAbsent(t, dest)

	n, err := testutil.GatherAndCount(m.Registry(), "pass_signing_operations_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("operations series = %d, want 1", n)
	}
}

func TestSignExistingDestination(t *testing.T) {
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	src := newSource(t, map[string]string{"a.txt": "hello"})
	dest := filepath.Join(t.TempDir(), "out.zip")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	provider := keys.NewStaticKeyProvider(leaf.Key, leaf.Chain())

	if _, err := Sign(context.Background(), Options{Source: src, Destination: dest, Keys: provider}); err == nil {
		t.Fatal("Sign() expected error for an existing destination")
	}

	if _, err := Sign(context.Background(), Options{Source: src, Destination: dest, Keys: provider, Overwrite: true}); err != nil {
		t.Fatalf("Sign() with Overwrite error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "old" {
		t.Error("destination was not replaced")
	}
}

func TestNewPassSignerErrors(t *testing.T) {
	src := newSource(t, map[string]string{"a.txt": "hello"})
	dest := filepath.Join(t.TempDir(), "out")
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	provider := keys.NewStaticKeyProvider(leaf.Key, leaf.Chain())

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"missing source", Options{Source: filepath.Join(src, "missing"), Destination: dest, Keys: provider}, true},
		{"no key provider", Options{Source: src, Destination: dest}, true},
		{"unsupported algorithm", Options{Source: src, Destination: dest, Keys: provider, Algorithm: "md5"}, true},
		{"sha512", Options{Source: src, Destination: dest, Keys: provider, Algorithm: "sha512"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPassSigner(tt.opts); (err != nil) != tt.wantErr {
				t.Errorf("NewPassSigner() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignCanceled(t *testing.T) {
	leaf := testpki.NewRootCA(t, "Root").NewLeaf(t, "Signer")
	src := newSource(t, map[string]string{"a.txt": "hello"})
	dest := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sign(ctx, Options{Source: src, Destination: dest, Keys: keys.NewStaticKeyProvider(leaf.Key, leaf.Chain())})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sign() error = %v, want context.Canceled", err)
	}
	assertAbsent(t, dest)
}
