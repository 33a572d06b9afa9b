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

// Package io streams byte sources into hash engines.
package io

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	hashengines "github.com/sigstore/pass-signing/pkg/hashing/engines"
)

// ReaderHasher hashes an io.Reader by streaming it into an inner
// StreamingHashEngine in fixed-size chunks.
//
// A ReaderHasher is not safe for concurrent use; each goroutine needs its
// own instance.
type ReaderHasher struct {
	contentHasher hashengines.StreamingHashEngine
	chunkSize     int
}

// NewReaderHasher constructs a ReaderHasher.
//
//   - contentHasher: the StreamingHashEngine used to hash content
//   - chunkSize: number of bytes read per chunk, must be positive
func NewReaderHasher(contentHasher hashengines.StreamingHashEngine, chunkSize int) (*ReaderHasher, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be strictly positive, got %d", chunkSize)
	}
	if contentHasher == nil {
		return nil, fmt.Errorf("content hasher must not be nil")
	}

	return &ReaderHasher{
		contentHasher: contentHasher,
		chunkSize:     chunkSize,
	}, nil
}

// DigestName is delegated to the inner content hasher.
func (h *ReaderHasher) DigestName() string {
	return h.contentHasher.DigestName()
}

// DigestSize is delegated to the inner content hasher.
func (h *ReaderHasher) DigestSize() int {
	return h.contentHasher.DigestSize()
}

// Compute drains r and returns its digest.
//
// ctx is checked before every chunk. Read failures are returned wrapped,
// never folded into a digest.
func (h *ReaderHasher) Compute(ctx context.Context, r io.Reader) (digests.Digest, error) {
	h.contentHasher.Reset(nil)

	buf := make([]byte, h.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return digests.Digest{}, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			h.contentHasher.Update(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return digests.Digest{}, fmt.Errorf("read content: %w", err)
		}
	}

	d, err := h.contentHasher.Compute()
	if err != nil {
		return digests.Digest{}, fmt.Errorf("compute digest: %w", err)
	}
	return d, nil
}
