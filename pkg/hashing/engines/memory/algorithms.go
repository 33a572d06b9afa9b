//
// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	hashengines "github.com/sigstore/pass-signing/pkg/hashing/engines"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names understood by the registry.
const (
	SHA256  = "sha256"
	SHA384  = "sha384"
	SHA512  = "sha512"
	BLAKE2b = "blake2b"
)

func init() {
	hashengines.MustRegister(SHA256, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA256(nil)
	})
	hashengines.MustRegister(SHA384, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA384(nil)
	})
	hashengines.MustRegister(SHA512, func() (hashengines.StreamingHashEngine, error) {
		return NewSHA512(nil)
	})
	hashengines.MustRegister(BLAKE2b, func() (hashengines.StreamingHashEngine, error) {
		return NewBLAKE2(nil)
	})
}

// NewSHA256 creates a SHA-256 engine.
func NewSHA256(initialData []byte) (*GenericHashEngine, error) {
	return NewGenericHashEngine(SHA256, sha256.Size, func() (hash.Hash, error) {
		return sha256.New(), nil
	}, initialData)
}

// NewSHA384 creates a SHA-384 engine.
func NewSHA384(initialData []byte) (*GenericHashEngine, error) {
	return NewGenericHashEngine(SHA384, sha512.Size384, func() (hash.Hash, error) {
		return sha512.New384(), nil
	}, initialData)
}

// NewSHA512 creates a SHA-512 engine.
func NewSHA512(initialData []byte) (*GenericHashEngine, error) {
	return NewGenericHashEngine(SHA512, sha512.Size, func() (hash.Hash, error) {
		return sha512.New(), nil
	}, initialData)
}

// NewBLAKE2 creates an unkeyed BLAKE2b-512 engine.
func NewBLAKE2(initialData []byte) (*GenericHashEngine, error) {
	return NewGenericHashEngine(BLAKE2b, blake2b.Size, func() (hash.Hash, error) {
		return blake2b.New512(nil)
	}, initialData)
}
