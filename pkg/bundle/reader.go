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
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// Tar members are spooled to disk so entries can be reopened. These bound
// a single member and the whole archive.
var (
	maxArchiveFileSize  int64 = 1 << 30
	maxArchiveTotalSize int64 = 8 << 30
)

// file is one container member at a normalized bundle-relative path.
type file struct {
	path  string
	dir   bool
	entry manifest.Entry
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// readContainer lists every member of the bundle at p. The returned closer
// must be closed once the entries are no longer read.
func readContainer(ctx context.Context, p string, format Format, allowSymlinks bool) ([]file, io.Closer, error) {
	switch format {
	case FormatDirectory:
		files, err := readDirectory(ctx, p, allowSymlinks)
		return files, nopCloser{}, err
	case FormatZip:
		return readZip(ctx, p)
	case FormatTarGz:
		return readTarGz(ctx, p)
	default:
		return nil, nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "unrecognized container format", nil)
	}
}

func readDirectory(ctx context.Context, root string, allowSymlinks bool) ([]file, error) {
	var files []file

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", path, err)
		}
		norm, err := manifest.NormalizePath(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		info, err := checkFileOrDirectory(path, norm, allowSymlinks)
		if err != nil {
			return err
		}
		if d.IsDir() {
			files = append(files, file{path: norm, dir: true})
			return nil
		}
		if info.IsDir() {
			return signerr.NewWithPath(signerr.KindInvalidPath, norm, "symlinked directories are not supported", nil)
		}

		abs := path
		files = append(files, file{path: norm, entry: manifest.Entry{
			Path: norm,
			Size: info.Size(),
			Open: func() (io.ReadCloser, error) {
				//nolint:gosec
				return os.Open(abs)
			},
		}})
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		var se *signerr.Error
		if errors.As(err, &se) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("walk bundle directory %q: %w", root, err)
	}
	return files, nil
}

func readZip(ctx context.Context, p string) ([]file, io.Closer, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "invalid zip archive", err)
	}

	files := make([]file, 0, len(zr.File))
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			_ = zr.Close()
			return nil, nil, err
		}

		isDir := zf.FileInfo().IsDir()
		norm, err := manifest.NormalizePath(strings.TrimSuffix(zf.Name, "/"))
		if err != nil {
			_ = zr.Close()
			return nil, nil, err
		}
		if isDir {
			files = append(files, file{path: norm, dir: true})
			continue
		}
		if !zf.Mode().IsRegular() {
			_ = zr.Close()
			return nil, nil, signerr.NewWithPath(signerr.KindInvalidPath, norm, "archive member is not a regular file", nil)
		}

		member := zf
		files = append(files, file{path: norm, entry: manifest.Entry{
			Path: norm,
			Size: int64(member.UncompressedSize64),
			Open: func() (io.ReadCloser, error) {
				return member.Open()
			},
		}})
	}
	return files, zr, nil
}

// spoolDir holds extracted tar members and is removed on Close.
type spoolDir string

func (d spoolDir) Close() error {
	return os.RemoveAll(string(d))
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readTarGz(ctx context.Context, p string) ([]file, io.Closer, error) {
	dir, err := os.MkdirTemp("", "pass-signing-tar-")
	if err != nil {
		return nil, nil, fmt.Errorf("create spool directory: %w", err)
	}
	spool := spoolDir(dir)

	files, err := spoolTarGz(ctx, p, dir)
	if err != nil {
		_ = spool.Close()
		return nil, nil, err
	}
	return files, spool, nil
}

func spoolTarGz(ctx context.Context, p, dir string) ([]file, error) {
	//nolint:gosec
	f, err := os.Open(p)
	if err != nil {
		return nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "cannot open bundle", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "invalid gzip stream", err)
	}
	defer gz.Close()

	var (
		files []file
		total int64
	)
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "invalid tar archive", err)
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			continue
		case tar.TypeDir:
			norm, err := manifest.NormalizePath(strings.TrimSuffix(hdr.Name, "/"))
			if err != nil {
				return nil, err
			}
			files = append(files, file{path: norm, dir: true})
			continue
		case tar.TypeReg:
		default:
			return nil, signerr.NewWithPath(signerr.KindInvalidPath, hdr.Name, "archive member is not a regular file", nil)
		}

		norm, err := manifest.NormalizePath(hdr.Name)
		if err != nil {
			return nil, err
		}
		if hdr.Size > maxArchiveFileSize {
			return nil, signerr.NewWithPath(signerr.KindMalformedBundle, norm, "archive member is too large", nil)
		}
		if total += hdr.Size; total > maxArchiveTotalSize {
			return nil, signerr.NewWithPath(signerr.KindMalformedBundle, p, "archive content is too large", nil)
		}

		// Spool files are named by position, never by member path.
		target := filepath.Join(dir, fmt.Sprintf("%06d", len(files)))
		if err := spoolMember(ctx, target, tr, hdr.Size); err != nil {
			return nil, fmt.Errorf("extract archive member %s: %w", norm, err)
		}
		files = append(files, file{path: norm, entry: manifest.Entry{
			Path: norm,
			Size: hdr.Size,
			Open: func() (io.ReadCloser, error) {
				return os.Open(target)
			},
		}})
	}
	return files, nil
}

func spoolMember(ctx context.Context, target string, r io.Reader, size int64) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(out, ctxReader{ctx: ctx, r: r}, size); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// split separates bundle entries from the reserved top-level files.
//
// A reserved name used as a directory is a collision. Two members at the
// same path are a malformed container. Entries come back sorted by path.
func split(files []file) ([]manifest.Entry, map[string]manifest.Entry, error) {
	entries := make([]manifest.Entry, 0, len(files))
	reserved := make(map[string]manifest.Entry, 2)
	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		if top := topLevel(f.path); IsReserved(top) && (f.dir || f.path != top) {
			return nil, nil, signerr.NewWithPath(signerr.KindReservedNameCollision, f.path,
				fmt.Sprintf("%q is reserved and cannot be a directory", top), nil)
		}
		if f.dir {
			continue
		}
		if _, dup := seen[f.path]; dup {
			return nil, nil, signerr.NewWithPath(signerr.KindMalformedBundle, f.path, "duplicate container member", nil)
		}
		seen[f.path] = struct{}{}

		if IsReserved(f.path) {
			reserved[f.path] = f.entry
			continue
		}
		entries = append(entries, f.entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, reserved, nil
}
