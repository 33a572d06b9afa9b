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

// Package bundle reads and writes signed bundles.
//
// A bundle is a directory, zip archive (.pkpass) or gzip-compressed tar
// archive holding the bundle files plus two reserved files at the top
// level: the manifest (manifest.json) and the detached signature
// (signature).
package bundle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

const (
	// ManifestName is the reserved top-level manifest file.
	ManifestName = manifest.FileName

	// SignatureName is the reserved top-level signature file.
	SignatureName = "signature"
)

// IsReserved reports whether p is one of the reserved top-level names.
func IsReserved(p string) bool {
	return p == ManifestName || p == SignatureName
}

// Format is a bundle container type.
type Format int

const (
	// FormatAuto infers the format from the path.
	FormatAuto Format = iota
	// FormatDirectory is a plain directory.
	FormatDirectory
	// FormatZip is a zip archive, the .pkpass layout.
	FormatZip
	// FormatTarGz is a gzip-compressed tar archive.
	FormatTarGz
)

// String returns the flag value for the format.
func (f Format) String() string {
	switch f {
	case FormatDirectory:
		return "dir"
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "auto"
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "dir", "directory":
		return FormatDirectory, nil
	case "zip", "pkpass":
		return FormatZip, nil
	case "tar.gz", "tgz", "targz":
		return FormatTarGz, nil
	default:
		return FormatAuto, fmt.Errorf("unknown bundle format %q (expected dir, zip or tar.gz)", s)
	}
}

// FormatFromPath infers an output format from a destination name.
func FormatFromPath(p string) Format {
	lower := strings.ToLower(p)
	switch {
	case strings.HasSuffix(lower, ".pkpass"), strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	default:
		return FormatDirectory
	}
}

var (
	zipMagic      = []byte("PK\x03\x04")
	emptyZipMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// DetectFormat inspects an existing bundle. Directories are recognized by
// type, archives by their leading bytes.
func DetectFormat(p string) (Format, error) {
	info, err := os.Stat(p)
	if err != nil {
		return FormatAuto, signerr.NewWithPath(signerr.KindMalformedBundle, p, "cannot open bundle", err)
	}
	if info.IsDir() {
		return FormatDirectory, nil
	}
	if !info.Mode().IsRegular() {
		return FormatAuto, signerr.NewWithPath(signerr.KindMalformedBundle, p, "bundle is neither a directory nor a regular file", nil)
	}

	//nolint:gosec
	f, err := os.Open(p)
	if err != nil {
		return FormatAuto, signerr.NewWithPath(signerr.KindMalformedBundle, p, "cannot open bundle", err)
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatAuto, signerr.NewWithPath(signerr.KindMalformedBundle, p, "cannot read bundle", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, emptyZipMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, nil
	default:
		return FormatAuto, signerr.NewWithPath(signerr.KindMalformedBundle, p, "unrecognized container format", nil)
	}
}
