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

package bundle

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// SourceOptions controls how unsigned bundle sources are enumerated.
type SourceOptions struct {
	// IgnorePaths lists bundle-relative paths to leave out. A directory
	// excludes everything beneath it.
	IgnorePaths []string

	// AllowSymlinks follows symlinks to regular files in directory sources.
	AllowSymlinks bool

	// ReplaceExisting drops a top-level manifest.json or signature left by
	// an earlier signing instead of failing with a collision.
	ReplaceExisting bool
}

// Source is an enumerated, unsigned bundle.
type Source struct {
	// Format is the container the source was read from.
	Format Format

	// Entries are the bundle files, sorted by path.
	Entries []manifest.Entry

	// Replaced lists reserved files dropped under ReplaceExisting.
	Replaced []string

	closer io.Closer
}

// Close releases the underlying container.
func (s *Source) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenSource enumerates the files of the bundle at path.
//
// A top-level manifest.json or signature fails with ReservedNameCollision
// unless opts.ReplaceExisting is set. Ignored paths never collide.
func OpenSource(ctx context.Context, path string, opts SourceOptions) (*Source, error) {
	var src *Source
	err := tracing.Run(ctx, "bundle.OpenSource", map[string]interface{}{"path": path}, func(ctx context.Context) error {
		ignore, err := newIgnoreSet(opts.IgnorePaths)
		if err != nil {
			return fmt.Errorf("invalid ignore path: %w", err)
		}

		format, err := DetectFormat(path)
		if err != nil {
			return err
		}
		files, closer, err := readContainer(ctx, path, format, opts.AllowSymlinks)
		if err != nil {
			return err
		}

		kept := files[:0]
		for _, f := range files {
			if !ignore.matches(f.path) {
				kept = append(kept, f)
			}
		}

		entries, reserved, err := split(kept)
		if err != nil {
			_ = closer.Close()
			return err
		}

		var replaced []string
		for name := range reserved {
			if !opts.ReplaceExisting {
				_ = closer.Close()
				return signerr.NewWithPath(signerr.KindReservedNameCollision, name,
					"source already contains a reserved file", nil)
			}
			replaced = append(replaced, name)
		}
		sort.Strings(replaced)

		src = &Source{Format: format, Entries: entries, Replaced: replaced, closer: closer}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}
