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

// Package memory provides in-memory streaming hash engines and registers
// the built-in algorithms with the hashengines registry.
package memory

import (
	"hash"

	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	hashengines "github.com/sigstore/pass-signing/pkg/hashing/engines"
)

var _ hashengines.StreamingHashEngine = (*GenericHashEngine)(nil)

// HashFactoryFunc creates a new hash.Hash instance.
type HashFactoryFunc func() (hash.Hash, error)

// GenericHashEngine adapts any hash.Hash to StreamingHashEngine.
type GenericHashEngine struct {
	name    string
	size    int
	factory HashFactoryFunc
	h       hash.Hash
}

// NewGenericHashEngine creates an engine named name producing size-byte
// digests. initialData, if any, is hashed immediately.
func NewGenericHashEngine(name string, size int, factory HashFactoryFunc, initialData []byte) (*GenericHashEngine, error) {
	h, err := factory()
	if err != nil {
		return nil, err
	}

	engine := &GenericHashEngine{
		name:    name,
		size:    size,
		factory: factory,
		h:       h,
	}
	engine.Update(initialData)

	return engine, nil
}

// Update appends bytes to the hash state.
func (e *GenericHashEngine) Update(data []byte) {
	if len(data) > 0 {
		// hash.Hash.Write never returns an error
		_, _ = e.h.Write(data)
	}
}

// Reset clears the hash state and seeds it with data.
func (e *GenericHashEngine) Reset(data []byte) {
	if h, err := e.factory(); err == nil {
		e.h = h
	} else {
		e.h.Reset()
	}
	e.Update(data)
}

// Compute finalizes the hash.
func (e *GenericHashEngine) Compute() (digests.Digest, error) {
	return digests.NewDigest(e.name, e.h.Sum(nil)), nil
}

// DigestName returns the algorithm name.
func (e *GenericHashEngine) DigestName() string {
	return e.name
}

// DigestSize returns the digest size in bytes.
func (e *GenericHashEngine) DigestSize() int {
	return e.size
}
