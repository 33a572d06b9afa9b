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

// Package manifest builds, serializes and checks bundle manifests: the
// mapping from every bundle-relative file path to the digest of its content.
package manifest

import (
	"sort"

	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// FileName is the reserved top-level name of the serialized manifest.
const FileName = "manifest.json"

// ResourceDescriptor pairs a manifest path with its digest.
//
// It maps directly onto an in-toto ResourceDescriptor {name, digest}.
type ResourceDescriptor struct {
	// Identifier is the canonical bundle-relative path.
	Identifier string

	// Digest is the content digest recorded for the path.
	Digest digests.Digest
}

// Item is a path and digest supplied to NewManifest.
type Item struct {
	Path   string
	Digest digests.Digest
}

// Manifest maps canonical bundle paths to content digests.
//
// A Manifest is immutable after construction and safe for concurrent reads.
type Manifest struct {
	items map[string]digests.Digest
}

// NewManifest builds a manifest from already hashed items.
//
// Paths are normalized. An invalid path yields an InvalidPath error and two
// items normalizing to the same path yield a DuplicatePath error.
func NewManifest(items []Item) (*Manifest, error) {
	itemMap := make(map[string]digests.Digest, len(items))
	for _, it := range items {
		key, err := NormalizePath(it.Path)
		if err != nil {
			return nil, err
		}
		if _, dup := itemMap[key]; dup {
			return nil, signerr.NewWithPath(signerr.KindDuplicatePath, key,
				"two entries normalize to the same path", nil)
		}
		itemMap[key] = it.Digest
	}
	return &Manifest{items: itemMap}, nil
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.items)
}

// Digest returns the digest recorded for path.
func (m *Manifest) Digest(path string) (digests.Digest, bool) {
	d, ok := m.items[path]
	return d, ok
}

// Paths returns every path in byte-lexicographic order.
func (m *Manifest) Paths() []string {
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether two manifests hold the same path to digest mapping.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil {
		return false
	}
	if len(m.items) != len(other.items) {
		return false
	}

	for name, digest := range m.items {
		otherDigest, ok := other.items[name]
		if !ok || !digest.Equal(otherDigest) {
			return false
		}
	}
	return true
}

// ResourceDescriptors returns each entry sorted by identifier.
func (m *Manifest) ResourceDescriptors() []ResourceDescriptor {
	ids := m.Paths()
	descs := make([]ResourceDescriptor, 0, len(ids))
	for _, id := range ids {
		descs = append(descs, ResourceDescriptor{
			Identifier: id,
			Digest:     m.items[id],
		})
	}
	return descs
}
