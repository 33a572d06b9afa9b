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

// Package hashing computes content digests for bundle entries.
//
// An Engine is bound to one algorithm and is safe for concurrent use: every
// call creates its own hash state from the registry.
package hashing

import (
	"context"
	"fmt"
	"io"

	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	hashengines "github.com/sigstore/pass-signing/pkg/hashing/engines"
	hashio "github.com/sigstore/pass-signing/pkg/hashing/engines/io"

	// Registers the built-in algorithms.
	_ "github.com/sigstore/pass-signing/pkg/hashing/engines/memory"
)

const (
	// DefaultAlgorithm is used when no algorithm is configured.
	DefaultAlgorithm = "sha256"

	// DefaultChunkSize bounds a single read when streaming content.
	DefaultChunkSize = 1 << 20
)

// Engine computes digests with a fixed algorithm.
type Engine struct {
	algorithm string
	size      int
	chunkSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the streaming read size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// New returns an Engine for algorithm. An empty name selects DefaultAlgorithm.
func New(algorithm string, opts ...Option) (*Engine, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	sample, err := hashengines.Create(algorithm)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		algorithm: algorithm,
		size:      sample.DigestSize(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Algorithm returns the algorithm name recorded in digests.
func (e *Engine) Algorithm() string {
	return e.algorithm
}

// Size returns the digest length in bytes.
func (e *Engine) Size() int {
	return e.size
}

// Digest hashes data in memory.
func (e *Engine) Digest(data []byte) digests.Digest {
	h, err := hashengines.Create(e.algorithm)
	if err != nil {
		// New already proved the algorithm is registered.
		panic(fmt.Sprintf("hash engine %q disappeared: %v", e.algorithm, err))
	}
	h.Update(data)
	d, err := h.Compute()
	if err != nil {
		panic(fmt.Sprintf("hash engine %q failed: %v", e.algorithm, err))
	}
	return d
}

// DigestReader streams r in bounded chunks, checking ctx between them.
func (e *Engine) DigestReader(ctx context.Context, r io.Reader) (digests.Digest, error) {
	h, err := hashengines.Create(e.algorithm)
	if err != nil {
		return digests.Digest{}, err
	}
	rh, err := hashio.NewReaderHasher(h, e.chunkSize)
	if err != nil {
		return digests.Digest{}, err
	}
	return rh.Compute(ctx, r)
}

// IsSupported reports whether algorithm can be used with New.
func IsSupported(algorithm string) bool {
	return hashengines.IsSupported(algorithm)
}

// SupportedAlgorithms lists the registered algorithm names.
func SupportedAlgorithms() []string {
	return hashengines.SupportedAlgorithms()
}

// ExpectedSize returns the digest length for algorithm, or false if the
// algorithm is unknown.
func ExpectedSize(algorithm string) (int, bool) {
	h, err := hashengines.Create(algorithm)
	if err != nil {
		return 0, false
	}
	return h.DigestSize(), true
}
