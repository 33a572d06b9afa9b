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

import "sort"

// Diff lists the differences between a manifest recomputed from the bundle
// and the manifest claimed by it.
type Diff struct {
	// ExtraFiles are present in actual but not in expected.
	ExtraFiles []string

	// MissingFiles are present in expected but not in actual.
	MissingFiles []string

	// Mismatches are present in both with different digests.
	Mismatches []HashMismatch
}

// HashMismatch is a single path whose digests differ.
type HashMismatch struct {
	Identifier string

	// ExpectedHash is the claimed digest in "alg:hex" form.
	ExpectedHash string

	// ActualHash is the recomputed digest in "alg:hex" form.
	ActualHash string
}

// IsEmpty returns true if there are no differences.
func (d *Diff) IsEmpty() bool {
	return len(d.ExtraFiles) == 0 && len(d.MissingFiles) == 0 && len(d.Mismatches) == 0
}

// ComputeDiff compares actual against expected. All slices are sorted.
//
// Digests compare by algorithm and bytes, so the same content hashed with a
// different algorithm counts as a mismatch.
func ComputeDiff(actual, expected *Manifest) *Diff {
	diff := &Diff{
		ExtraFiles:   []string{},
		MissingFiles: []string{},
		Mismatches:   []HashMismatch{},
	}

	for id := range actual.items {
		if _, exists := expected.items[id]; !exists {
			diff.ExtraFiles = append(diff.ExtraFiles, id)
		}
	}
	sort.Strings(diff.ExtraFiles)

	for id := range expected.items {
		if _, exists := actual.items[id]; !exists {
			diff.MissingFiles = append(diff.MissingFiles, id)
		}
	}
	sort.Strings(diff.MissingFiles)

	var common []string
	for id := range actual.items {
		if _, exists := expected.items[id]; exists {
			common = append(common, id)
		}
	}
	sort.Strings(common)

	for _, id := range common {
		got, want := actual.items[id], expected.items[id]
		if !got.Equal(want) {
			diff.Mismatches = append(diff.Mismatches, HashMismatch{
				Identifier:   id,
				ExpectedHash: want.String(),
				ActualHash:   got.String(),
			})
		}
	}

	return diff
}
