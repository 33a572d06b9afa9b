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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// archiveEpoch is the fixed modification time stamped on archive members.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// PackOptions controls bundle output.
type PackOptions struct {
	// Format selects the container. FormatAuto infers it from the
	// destination name.
	Format Format

	// Overwrite replaces an existing destination.
	Overwrite bool
}

// Pack writes entries, the manifest and the signature to dest.
//
// Output is assembled in a temporary sibling of dest and renamed into place,
// so dest is either the complete bundle or untouched. Any I/O failure is a
// Write error. Archives are deterministic: members are sorted and carry
// fixed timestamps and modes.
func Pack(ctx context.Context, entries []manifest.Entry, manifestBytes, signature []byte, dest string, opts PackOptions) error {
	format := opts.Format
	if format == FormatAuto {
		format = FormatFromPath(dest)
	}

	return tracing.Run(ctx, "bundle.Pack", map[string]interface{}{
		"dest":    dest,
		"format":  format.String(),
		"entries": len(entries),
	}, func(ctx context.Context) error {
		sorted, err := sortedEntries(entries)
		if err != nil {
			return err
		}

		if _, err := os.Lstat(dest); err == nil && !opts.Overwrite {
			return signerr.NewWithPath(signerr.KindWrite, dest, "destination already exists", nil)
		}

		parent := filepath.Dir(dest)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return writeErr(dest, "cannot create destination directory", err)
		}

		w := &packer{ctx: ctx, entries: sorted, manifest: manifestBytes, signature: signature}
		var tmp string
		switch format {
		case FormatDirectory:
			tmp, err = w.writeDirectory(parent, filepath.Base(dest))
		case FormatZip:
			tmp, err = w.writeArchive(parent, filepath.Base(dest), w.writeZip)
		case FormatTarGz:
			tmp, err = w.writeArchive(parent, filepath.Base(dest), w.writeTarGz)
		default:
			return writeErr(dest, fmt.Sprintf("unsupported format %s", format), nil)
		}
		if err != nil {
			if tmp != "" {
				_ = os.RemoveAll(tmp)
			}
			return writeErr(dest, "failed to write bundle", err)
		}

		if err := replace(tmp, dest); err != nil {
			_ = os.RemoveAll(tmp)
			return writeErr(dest, "failed to move bundle into place", err)
		}
		return nil
	})
}

func writeErr(dest, msg string, cause error) error {
	var se *signerr.Error
	if errors.As(cause, &se) && se.Kind == signerr.KindWrite {
		return cause
	}
	return signerr.NewWithPath(signerr.KindWrite, dest, msg, cause)
}

// sortedEntries rejects entries that would collide with the reserved files.
func sortedEntries(entries []manifest.Entry) ([]manifest.Entry, error) {
	out := append([]manifest.Entry(nil), entries...)
	for i, e := range out {
		norm, err := manifest.NormalizePath(e.Path)
		if err != nil {
			return nil, err
		}
		if top := topLevel(norm); IsReserved(top) {
			return nil, signerr.NewWithPath(signerr.KindReservedNameCollision, norm,
				fmt.Sprintf("%q is reserved for the signed bundle", top), nil)
		}
		out[i].Path = norm
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// replace renames tmp to dest, moving an existing dest aside first.
func replace(tmp, dest string) error {
	if _, err := os.Lstat(dest); err != nil {
		return os.Rename(tmp, dest)
	}

	backup, err := os.MkdirTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".old-")
	if err != nil {
		return err
	}
	old := filepath.Join(backup, "bundle")
	if err := os.Rename(dest, old); err != nil {
		_ = os.RemoveAll(backup)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Rename(old, dest)
		_ = os.RemoveAll(backup)
		return err
	}
	return os.RemoveAll(backup)
}

type packer struct {
	ctx       context.Context
	entries   []manifest.Entry
	manifest  []byte
	signature []byte
}

// members yields every bundle member in output order: entries sorted by
// path, then the manifest, then the signature.
func (p *packer) members(fn func(name string, r io.Reader) error) error {
	for _, e := range p.entries {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		rc, err := e.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", e.Path, err)
		}
		err = fn(e.Path, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Path, err)
		}
	}
	if err := fn(ManifestName, bytes.NewReader(p.manifest)); err != nil {
		return fmt.Errorf("failed to write %s: %w", ManifestName, err)
	}
	if err := fn(SignatureName, bytes.NewReader(p.signature)); err != nil {
		return fmt.Errorf("failed to write %s: %w", SignatureName, err)
	}
	return nil
}

func (p *packer) writeDirectory(parent, base string) (string, error) {
	tmp, err := os.MkdirTemp(parent, "."+base+".tmp-")
	if err != nil {
		return "", err
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return tmp, err
	}

	err = p.members(func(name string, r io.Reader) error {
		target := filepath.Join(tmp, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		//nolint:gosec
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	return tmp, err
}

func (p *packer) writeArchive(parent, base string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(parent, "."+base+".tmp-")
	if err != nil {
		return "", err
	}
	tmp := f.Name()

	if err := write(f); err != nil {
		_ = f.Close()
		return tmp, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return tmp, err
	}
	if err := f.Close(); err != nil {
		return tmp, err
	}
	return tmp, os.Chmod(tmp, 0o644)
}

func (p *packer) writeZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	err := p.members(func(name string, r io.Reader) error {
		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		}
		hdr.SetMode(0o644)
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, r)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func (p *packer) writeTarGz(w io.Writer) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	err := p.members(func(name string, r io.Reader) error {
		// tar needs the size up front.
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:     name,
			Size:     int64(len(data)),
			Mode:     0o644,
			ModTime:  archiveEpoch,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		_ = tw.Close()
		_ = gw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		_ = gw.Close()
		return err
	}
	return gw.Close()
}
