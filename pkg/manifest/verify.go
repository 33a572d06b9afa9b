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
	"errors"
	"fmt"
	"sort"

	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// Violation is a single integrity problem found by Verify.
type Violation struct {
	Path   string       `json:"path" yaml:"path"`
	Kind   signerr.Kind `json:"kind" yaml:"kind"`
	Reason string       `json:"reason" yaml:"reason"`
}

// Err returns the violation as a typed error.
func (v Violation) Err() error {
	return signerr.NewWithPath(v.Kind, v.Path, v.Reason, nil)
}

// Result lists every violation found, sorted by path then kind.
type Result struct {
	Violations []Violation
}

// OK reports whether no violations were found.
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// Count returns the number of violations of kind.
func (r *Result) Count(kind signerr.Kind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// Err joins all violations into one error, or returns nil.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Violations))
	for _, v := range r.Violations {
		errs = append(errs, v.Err())
	}
	return errors.Join(errs...)
}

// Verify recomputes the digest of every entry and compares the result with
// claimed. It does not stop at the first problem: every extra, missing,
// mismatched, invalid or duplicate entry is reported.
//
// Each entry is hashed with the algorithm claimed for its path, or the
// builder's algorithm for paths the manifest does not list. A non-nil error
// means the check itself could not complete (read failure, cancellation).
func (b *Builder) Verify(ctx context.Context, claimed *Manifest, entries []Entry) (*Result, error) {
	if claimed == nil {
		return nil, fmt.Errorf("claimed manifest must not be nil")
	}

	result := &Result{}
	err := tracing.Run(ctx, "manifest.Verify", map[string]interface{}{
		"entries": len(entries),
		"claimed": claimed.Len(),
	}, func(ctx context.Context) error {
		var (
			kept  []Entry
			paths []string
			seen  = make(map[string]struct{}, len(entries))
		)
		for _, e := range entries {
			p, err := NormalizePath(e.Path)
			if err != nil {
				result.Violations = append(result.Violations, Violation{
					Path:   e.Path,
					Kind:   signerr.KindInvalidPath,
					Reason: reasonOf(err),
				})
				continue
			}
			if _, dup := seen[p]; dup {
				result.Violations = append(result.Violations, Violation{
					Path:   p,
					Kind:   signerr.KindDuplicatePath,
					Reason: "two entries normalize to the same path",
				})
				continue
			}
			seen[p] = struct{}{}
			kept = append(kept, e)
			paths = append(paths, p)
		}

		engines := map[string]*hashing.Engine{b.engine.Algorithm(): b.engine}
		for _, d := range claimed.items {
			alg := d.Algorithm()
			if _, ok := engines[alg]; ok {
				continue
			}
			e, err := hashing.New(alg)
			if err != nil {
				return signerr.New(signerr.KindMalformedBundle,
					fmt.Sprintf("manifest uses unsupported algorithm %q", alg), err)
			}
			engines[alg] = e
		}
		engineFor := func(p string) *hashing.Engine {
			if d, ok := claimed.items[p]; ok {
				return engines[d.Algorithm()]
			}
			return b.engine
		}

		results, err := b.digestAll(ctx, kept, paths, engineFor)
		if err != nil {
			return err
		}

		items := make(map[string]digests.Digest, len(paths))
		for i, p := range paths {
			items[p] = results[i]
		}
		actual := &Manifest{items: items}

		diff := ComputeDiff(actual, claimed)
		for _, p := range diff.ExtraFiles {
			result.Violations = append(result.Violations, Violation{
				Path:   p,
				Kind:   signerr.KindExtraFile,
				Reason: "file is not listed in the manifest",
			})
		}
		for _, p := range diff.MissingFiles {
			result.Violations = append(result.Violations, Violation{
				Path:   p,
				Kind:   signerr.KindMissingFile,
				Reason: "file listed in the manifest is not in the bundle",
			})
		}
		for _, mm := range diff.Mismatches {
			result.Violations = append(result.Violations, Violation{
				Path:   mm.Identifier,
				Kind:   signerr.KindDigestMismatch,
				Reason: fmt.Sprintf("expected %s, got %s", mm.ExpectedHash, mm.ActualHash),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortViolations(result.Violations)
	if !result.OK() {
		b.logger.Warn("Manifest verification found %d violation(s)", len(result.Violations))
	}
	return result, nil
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Path != vs[j].Path {
			return vs[i].Path < vs[j].Path
		}
		return vs[i].Kind < vs[j].Kind
	})
}

func reasonOf(err error) string {
	var se *signerr.Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
