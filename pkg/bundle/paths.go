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
	"os"
	"strings"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// checkFileOrDirectory checks that path is a regular file or a directory.
// Sockets, pipes and other special files are rejected, as are symlinks
// unless allowSymlinks is set, in which case the target must be a regular
// file or directory.
func checkFileOrDirectory(path, rel string, allowSymlinks bool) (os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, signerr.NewWithPath(signerr.KindInvalidPath, rel, "cannot use as file or directory", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !allowSymlinks {
			return nil, signerr.NewWithPath(signerr.KindInvalidPath, rel,
				"symlinks are not allowed; this behavior can be changed with AllowSymlinks", nil)
		}
		info, err = os.Stat(path)
		if err != nil {
			return nil, signerr.NewWithPath(signerr.KindInvalidPath, rel,
				"cannot follow symlink; it might be broken or permission denied", err)
		}
	}

	if !info.Mode().IsRegular() && !info.IsDir() {
		return nil, signerr.NewWithPath(signerr.KindInvalidPath, rel, "special files are not supported", nil)
	}
	return info, nil
}

// ignoreSet matches bundle-relative paths against ignore entries. An entry
// naming a directory ignores everything beneath it.
type ignoreSet []string

func newIgnoreSet(paths []string) (ignoreSet, error) {
	set := make(ignoreSet, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		norm, err := manifest.NormalizePath(p)
		if err != nil {
			return nil, err
		}
		set = append(set, norm)
	}
	return set, nil
}

func (s ignoreSet) matches(rel string) bool {
	for _, base := range s {
		if rel == base || strings.HasPrefix(rel, base+"/") {
			return true
		}
	}
	return false
}

// topLevel returns the first segment of a normalized path.
func topLevel(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return rel
}
