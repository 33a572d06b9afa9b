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
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// Builder computes manifests from bundle entries.
//
// Entries are hashed concurrently. Results are collected by input index and
// keyed by path, so the resulting manifest never depends on completion order.
type Builder struct {
	engine  *hashing.Engine
	workers int
	logger  logging.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkers bounds the number of entries hashed at once. Values below one
// fall back to runtime.NumCPU.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(l logging.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder returns a Builder hashing with engine.
func NewBuilder(engine *hashing.Engine, opts ...BuilderOption) (*Builder, error) {
	if engine == nil {
		return nil, fmt.Errorf("hash engine must not be nil")
	}
	b := &Builder{
		engine:  engine,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.EnsureLogger(b.logger)
	return b, nil
}

// Algorithm returns the digest algorithm used for new manifests.
func (b *Builder) Algorithm() string {
	return b.engine.Algorithm()
}

// Build hashes every entry and returns the manifest.
//
// It fails on the first invalid or duplicate path, on the first read error
// and when ctx is cancelled.
func (b *Builder) Build(ctx context.Context, entries []Entry) (*Manifest, error) {
	var m *Manifest
	err := tracing.Run(ctx, "manifest.Build", map[string]interface{}{
		"entries":   len(entries),
		"algorithm": b.engine.Algorithm(),
	}, func(ctx context.Context) error {
		paths := make([]string, len(entries))
		seen := make(map[string]struct{}, len(entries))
		for i, e := range entries {
			p, err := NormalizePath(e.Path)
			if err != nil {
				return err
			}
			if _, dup := seen[p]; dup {
				return signerr.NewWithPath(signerr.KindDuplicatePath, p,
					"two entries normalize to the same path", nil)
			}
			seen[p] = struct{}{}
			paths[i] = p
		}

		results, err := b.digestAll(ctx, entries, paths, func(string) *hashing.Engine { return b.engine })
		if err != nil {
			return err
		}

		items := make(map[string]digests.Digest, len(paths))
		for i, p := range paths {
			items[p] = results[i]
		}
		m = &Manifest{items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Built manifest with %d entries", m.Len())
	return m, nil
}

// digestAll hashes entries[i] with engineFor(paths[i]) and stores the result
// at index i. ctx is checked before each entry starts.
func (b *Builder) digestAll(
	ctx context.Context,
	entries []Entry,
	paths []string,
	engineFor func(path string) *hashing.Engine,
) ([]digests.Digest, error) {
	results := make([]digests.Digest, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := digestEntry(gctx, entries[i], paths[i], engineFor(paths[i]))
			if err != nil {
				return err
			}
			results[i] = d
			b.logger.Debug("Hashed %s", paths[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func digestEntry(ctx context.Context, e Entry, path string, engine *hashing.Engine) (digests.Digest, error) {
	if e.Open == nil {
		return digests.Digest{}, fmt.Errorf("entry %s has no content", path)
	}

	rc, err := e.Open()
	if err != nil {
		return digests.Digest{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	d, err := engine.DigestReader(ctx, rc)
	if err != nil {
		return digests.Digest{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d, nil
}
