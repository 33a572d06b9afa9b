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
	"path"
	"strings"
	"unicode/utf8"

	"github.com/sigstore/pass-signing/pkg/signerr"
)

// NormalizePath converts p into the canonical bundle-relative form used as a
// manifest key: forward slashes, no "." segments, no duplicate separators.
//
// Empty paths, absolute paths (leading separator or drive letter) and paths
// containing a ".." segment are rejected with an InvalidPath error. Case is
// preserved.
func NormalizePath(p string) (string, error) {
	if p == "" {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path is empty", nil)
	}

	slashed := strings.ReplaceAll(p, `\`, "/")

	if strings.HasPrefix(slashed, "/") {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path is absolute", nil)
	}
	if hasDriveLetter(slashed) {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path has a volume name", nil)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path contains a parent directory segment", nil)
		}
	}
	if strings.ContainsRune(slashed, 0) {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path contains a NUL byte", nil)
	}
	if !utf8.ValidString(slashed) {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path is not valid UTF-8", nil)
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", signerr.NewWithPath(signerr.KindInvalidPath, p, "path does not name a file", nil)
	}
	return cleaned, nil
}

// IsCanonical reports whether p is already in normalized form.
func IsCanonical(p string) bool {
	n, err := NormalizePath(p)
	return err == nil && n == p
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
