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

// Package digests provides the content digest value type.
//
// A Digest pairs an algorithm name with the raw hash bytes. Fields are
// unexported and every accessor copies, so a Digest can be shared freely
// between goroutines.
package digests

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest represents a computed content digest.
type Digest struct {
	algorithm string
	value     []byte
}

// NewDigest creates a Digest, copying value.
func NewDigest(algorithm string, value []byte) Digest {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	return Digest{
		algorithm: algorithm,
		value:     valueCopy,
	}
}

// Parse decodes the "algorithm:hex" form produced by String.
func Parse(s string) (Digest, error) {
	algorithm, encoded, ok := strings.Cut(s, ":")
	if !ok || algorithm == "" {
		return Digest{}, fmt.Errorf("digest %q is not in algorithm:hex form", s)
	}
	if encoded == "" {
		return Digest{}, fmt.Errorf("digest %q has an empty value", s)
	}
	if strings.ToLower(encoded) != encoded {
		return Digest{}, fmt.Errorf("digest %q must use lowercase hex", s)
	}

	value, err := hex.DecodeString(encoded)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %q: %w", s, err)
	}

	return Digest{algorithm: algorithm, value: value}, nil
}

// Algorithm returns the name of the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns a copy of the raw digest bytes.
func (d Digest) Value() []byte {
	valueCopy := make([]byte, len(d.value))
	copy(valueCopy, d.value)
	return valueCopy
}

// Hex returns the lowercase hexadecimal encoding of the digest value.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.value)
}

// Size returns the length in bytes of the digest value.
func (d Digest) Size() int {
	return len(d.value)
}

// IsZero reports whether d holds no algorithm and no value.
func (d Digest) IsZero() bool {
	return d.algorithm == "" && len(d.value) == 0
}

// String returns "algorithm:hexvalue", the form recorded in manifests.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, d.Hex())
}

// Equal reports whether both digests use the same algorithm and carry
// identical bytes.
func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && bytes.Equal(d.value, other.value)
}
