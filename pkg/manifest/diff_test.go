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

package manifest

import (
	"testing"

	"github.com/sigstore/pass-signing/pkg/hashing/digests"
)

func TestComputeDiff(t *testing.T) {
	d1 := digests.NewDigest("sha256", []byte{0x01, 0x02, 0x03})
	d2 := digests.NewDigest("sha256", []byte{0x04, 0x05, 0x06})
	d3 := digests.NewDigest("sha256", []byte{0x07, 0x08, 0x09})
	other := digests.NewDigest("sha256", []byte{0xff, 0xfe, 0xfd})

	tests := []struct {
		name         string
		actual       []Item
		expected     []Item
		wantExtra    []string
		wantMissing  []string
		wantMismatch []string
	}{
		{
			name:     "equal",
			actual:   []Item{{"file1.txt", d1}, {"file2.txt", d2}},
			expected: []Item{{"file1.txt", d1}, {"file2.txt", d2}},
		},
		{
			name:      "extra",
			actual:    []Item{{"file1.txt", d1}, {"extra.txt", d3}},
			expected:  []Item{{"file1.txt", d1}},
			wantExtra: []string{"extra.txt"},
		},
		{
			name:        "missing",
			actual:      []Item{{"file1.txt", d1}},
			expected:    []Item{{"file3.txt", d3}, {"file1.txt", d1}, {"file2.txt", d2}},
			wantMissing: []string{"file2.txt", "file3.txt"},
		},
		{
			name:         "mismatch",
			actual:       []Item{{"file1.txt", other}, {"file2.txt", d2}},
			expected:     []Item{{"file1.txt", d1}, {"file2.txt", d2}},
			wantMismatch: []string{"file1.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := ComputeDiff(mustManifest(t, tt.actual...), mustManifest(t, tt.expected...))

			if !equalStrings(diff.ExtraFiles, tt.wantExtra) {
				t.Errorf("ExtraFiles = %v, want %v", diff.ExtraFiles, tt.wantExtra)
			}
			if !equalStrings(diff.MissingFiles, tt.wantMissing) {
				t.Errorf("MissingFiles = %v, want %v", diff.MissingFiles, tt.wantMissing)
			}
			var mismatched []string
			for _, m := range diff.Mismatches {
				mismatched = append(mismatched, m.Identifier)
			}
			if !equalStrings(mismatched, tt.wantMismatch) {
				t.Errorf("Mismatches = %v, want %v", mismatched, tt.wantMismatch)
			}
			wantEmpty := len(tt.wantExtra)+len(tt.wantMissing)+len(tt.wantMismatch) == 0
			if diff.IsEmpty() != wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", diff.IsEmpty(), wantEmpty)
			}
		})
	}
}

func TestComputeDiffMismatchHashes(t *testing.T) {
	want := digests.NewDigest("sha256", []byte{0x01})
	got := digests.NewDigest("sha256", []byte{0x02})

	diff := ComputeDiff(mustManifest(t, Item{"f", got}), mustManifest(t, Item{"f", want}))
	if len(diff.Mismatches) != 1 {
		t.Fatalf("Mismatches = %v", diff.Mismatches)
	}
	if diff.Mismatches[0].ExpectedHash != "sha256:01" || diff.Mismatches[0].ActualHash != "sha256:02" {
		t.Fatalf("mismatch = %+v", diff.Mismatches[0])
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
