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

package digests

import "testing"

func TestNewDigestCopies(t *testing.T) {
	raw := []byte{0x01, 0x02}
	d := NewDigest("sha256", raw)
	raw[0] = 0xff

	if d.Value()[0] != 0x01 {
		t.Fatalf("NewDigest did not copy input")
	}

	v := d.Value()
	v[1] = 0xff
	if d.Value()[1] != 0x02 {
		t.Fatalf("Value did not return a copy")
	}
}

func TestStringAndParse(t *testing.T) {
	d := NewDigest("sha256", []byte{0xde, 0xad, 0xbe, 0xef})
	if got, want := d.String(), "sha256:deadbeef"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	parsed, err := Parse(d.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equal(d) {
		t.Fatalf("Parse(String()) = %s, want %s", parsed, d)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "deadbeef"},
		{"empty algorithm", ":deadbeef"},
		{"empty value", "sha256:"},
		{"uppercase hex", "sha256:DEADBEEF"},
		{"odd length", "sha256:abc"},
		{"not hex", "sha256:zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Fatalf("Parse(%q) expected error", tt.input)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := NewDigest("sha256", []byte{1})
	if !a.Equal(NewDigest("sha256", []byte{1})) {
		t.Error("identical digests should be equal")
	}
	if a.Equal(NewDigest("sha512", []byte{1})) {
		t.Error("different algorithms should not be equal")
	}
	if a.Equal(NewDigest("sha256", []byte{2})) {
		t.Error("different bytes should not be equal")
	}
	if !(Digest{}).IsZero() || a.IsZero() {
		t.Error("IsZero mismatch")
	}
}
