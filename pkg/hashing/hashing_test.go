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

package hashing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		wantAlg   string
		wantSize  int
		wantErr   bool
	}{
		{"default", "", "sha256", 32, false},
		{"sha256", "sha256", "sha256", 32, false},
		{"sha384", "sha384", "sha384", 48, false},
		{"sha512", "sha512", "sha512", 64, false},
		{"blake2b", "blake2b", "blake2b", 64, false},
		{"unsupported", "md5", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.algorithm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.algorithm, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if e.Algorithm() != tt.wantAlg {
				t.Errorf("Algorithm() = %q, want %q", e.Algorithm(), tt.wantAlg)
			}
			if e.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", e.Size(), tt.wantSize)
			}
		})
	}
}

func TestDigestKnownValue(t *testing.T) {
	e, err := New("sha256")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := sha256.Sum256([]byte("hello"))
	got := e.Digest([]byte("hello"))
	if !bytes.Equal(got.Value(), want[:]) {
		t.Fatalf("Digest(hello) = %x, want %x", got.Value(), want)
	}
	if got.Algorithm() != "sha256" {
		t.Fatalf("Algorithm = %q, want sha256", got.Algorithm())
	}
}

func TestDigestFixedLength(t *testing.T) {
	for _, alg := range SupportedAlgorithms() {
		t.Run(alg, func(t *testing.T) {
			e, err := New(alg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for _, in := range [][]byte{nil, {0}, bytes.Repeat([]byte("x"), 3<<20)} {
				if d := e.Digest(in); d.Size() != e.Size() {
					t.Fatalf("len %d input: digest size %d, want %d", len(in), d.Size(), e.Size())
				}
			}
		})
	}
}

func TestDigestReaderMatchesDigest(t *testing.T) {
	e, err := New("sha256", WithChunkSize(7))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte(strings.Repeat("pass-signing ", 100))
	got, err := e.DigestReader(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DigestReader: %v", err)
	}
	if want := e.Digest(data); !got.Equal(want) {
		t.Fatalf("DigestReader = %s, want %s", got, want)
	}
}

func TestDigestReaderEmpty(t *testing.T) {
	e, _ := New("")
	got, err := e.DigestReader(context.Background(), bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("DigestReader: %v", err)
	}
	if !got.Equal(e.Digest(nil)) {
		t.Fatalf("empty stream digest mismatch")
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDigestReaderPropagatesReadError(t *testing.T) {
	e, _ := New("")
	boom := errors.New("boom")

	_, err := e.DigestReader(context.Background(), failingReader{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("DigestReader error = %v, want wrapped %v", err, boom)
	}
}

func TestDigestReaderCancelled(t *testing.T) {
	e, _ := New("", WithChunkSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.DigestReader(ctx, io.LimitReader(bytes.NewReader(make([]byte, 64)), 64))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DigestReader error = %v, want context.Canceled", err)
	}
}

func TestExpectedSize(t *testing.T) {
	if n, ok := ExpectedSize("sha512"); !ok || n != 64 {
		t.Fatalf("ExpectedSize(sha512) = %d, %v", n, ok)
	}
	if _, ok := ExpectedSize("crc32"); ok {
		t.Fatalf("ExpectedSize(crc32) should be unknown")
	}
}
