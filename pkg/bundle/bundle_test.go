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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

var (
	testManifest  = []byte("{}\n")
	testSignature = []byte(`{"mediaType":"test"}`)
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readEntries(t *testing.T, entries []manifest.Entry) map[string]string {
	t.Helper()
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		rc, err := e.Open()
		if err != nil {
			t.Fatalf("Open(%s) error = %v", e.Path, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", e.Path, err)
		}
		out[e.Path] = string(data)
	}
	return out
}

func requireKind(t *testing.T, err error, kind signerr.Kind) {
	t.Helper()
	if !signerr.IsKind(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	entries := []manifest.Entry{
		manifest.BytesEntry("b.txt", []byte("world")),
		manifest.BytesEntry("a.txt", []byte("hello")),
		manifest.BytesEntry("images/logo.png", []byte{0x89, 'P', 'N', 'G'}),
	}

	tests := []struct {
		name   string
		dest   string
		format Format
	}{
		{name: "directory", dest: "pass", format: FormatDirectory},
		{name: "zip", dest: "pass.pkpass", format: FormatZip},
		{name: "tar.gz", dest: "pass.tar.gz", format: FormatTarGz},
		{name: "inferred zip", dest: "inferred.pkpass", format: FormatAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), tt.dest)
			if err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{Format: tt.format}); err != nil {
				t.Fatalf("Pack() error = %v", err)
			}

			u, err := Unpack(context.Background(), dest)
			if err != nil {
				t.Fatalf("Unpack() error = %v", err)
			}
			defer u.Close()

			want := tt.format
			if want == FormatAuto {
				want = FormatFromPath(tt.dest)
			}
			if u.Format != want {
				t.Errorf("Format = %s, want %s", u.Format, want)
			}
			if !bytes.Equal(u.Manifest, testManifest) || !bytes.Equal(u.Signature, testSignature) {
				t.Errorf("reserved files changed: manifest %q signature %q", u.Manifest, u.Signature)
			}

			got := readEntries(t, u.Entries)
			wantFiles := map[string]string{"a.txt": "hello", "b.txt": "world", "images/logo.png": "\x89PNG"}
			if len(got) != len(wantFiles) {
				t.Fatalf("got %d entries, want %d: %v", len(got), len(wantFiles), got)
			}
			for k, v := range wantFiles {
				if got[k] != v {
					t.Errorf("entry %s = %q, want %q", k, got[k], v)
				}
			}
			if u.Entries[0].Path != "a.txt" {
				t.Errorf("entries not sorted: first is %s", u.Entries[0].Path)
			}
		})
	}
}

func TestPackDeterministicArchives(t *testing.T) {
	entries := []manifest.Entry{
		manifest.BytesEntry("z.txt", []byte("last")),
		manifest.BytesEntry("a.txt", []byte("first")),
	}
	for _, name := range []string{"pass.pkpass", "pass.tgz"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			one := filepath.Join(dir, "one", name)
			two := filepath.Join(dir, "two", name)
			reversed := []manifest.Entry{entries[1], entries[0]}

			if err := Pack(context.Background(), entries, testManifest, testSignature, one, PackOptions{}); err != nil {
				t.Fatal(err)
			}
			if err := Pack(context.Background(), reversed, testManifest, testSignature, two, PackOptions{}); err != nil {
				t.Fatal(err)
			}

			a, _ := os.ReadFile(one)
			b, _ := os.ReadFile(two)
			if !bytes.Equal(a, b) {
				t.Error("archives differ for the same input")
			}
		})
	}
}

func TestPackExistingDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "pass.pkpass")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries := []manifest.Entry{manifest.BytesEntry("a.txt", []byte("hello"))}

	err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{})
	requireKind(t, err, signerr.KindWrite)
	if data, _ := os.ReadFile(dest); string(data) != "old" {
		t.Error("destination modified without Overwrite")
	}

	if err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{Overwrite: true}); err != nil {
		t.Fatalf("Pack() with Overwrite error = %v", err)
	}
	if f, err := DetectFormat(dest); err != nil || f != FormatZip {
		t.Errorf("DetectFormat() = %s, %v, want zip", f, err)
	}
	assertNoLeftovers(t, dir, "pass.pkpass")
}

func TestPackOverwriteDirectory(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "pass")
	writeTree(t, dest, map[string]string{"stale.txt": "stale"})

	entries := []manifest.Entry{manifest.BytesEntry("a.txt", []byte("hello"))}
	if err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{Overwrite: true}); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Error("old directory contents survived overwrite")
	}
	assertNoLeftovers(t, dir, "pass")
}

func TestPackFailureLeavesNothing(t *testing.T) {
	boom := errors.New("disk on fire")
	entries := []manifest.Entry{
		manifest.BytesEntry("a.txt", []byte("hello")),
		{Path: "b.txt", Open: func() (io.ReadCloser, error) { return nil, boom }},
	}

	for _, name := range []string{"pass", "pass.pkpass", "pass.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			dest := filepath.Join(dir, name)

			err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{})
			requireKind(t, err, signerr.KindWrite)
			if !errors.Is(err, boom) {
				t.Errorf("Pack() error = %v, want cause %v", err, boom)
			}
			if _, err := os.Lstat(dest); !os.IsNotExist(err) {
				t.Error("destination exists after failed pack")
			}
			assertNoLeftovers(t, dir, "")
		})
	}
}

func TestPackCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "pass")
	err := Pack(ctx, []manifest.Entry{manifest.BytesEntry("a.txt", nil)}, testManifest, testSignature, dest, PackOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Pack() error = %v, want context.Canceled", err)
	}
	if _, err := os.Lstat(dest); !os.IsNotExist(err) {
		t.Error("destination exists after canceled pack")
	}
}

func TestPackReservedEntry(t *testing.T) {
	for _, name := range []string{"manifest.json", "signature", "signature/inner.txt"} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "pass")
			err := Pack(context.Background(), []manifest.Entry{manifest.BytesEntry(name, nil)}, testManifest, testSignature, dest, PackOptions{})
			requireKind(t, err, signerr.KindReservedNameCollision)
		})
	}
}

func assertNoLeftovers(t *testing.T, dir, keep string) {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, de := range des {
		if de.Name() != keep {
			t.Errorf("unexpected leftover %s", de.Name())
		}
	}
}

func TestOpenSourceDirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":             "hello",
		"b.txt":             "world",
		"sub/signature":     "nested reserved names are ordinary files",
		"drafts/notes.txt":  "ignored",
		"sub/manifest.json": "also ordinary",
	})

	src, err := OpenSource(context.Background(), root, SourceOptions{IgnorePaths: []string{"drafts"}})
	if err != nil {
		t.Fatalf("OpenSource() error = %v", err)
	}
	defer src.Close()

	if src.Format != FormatDirectory {
		t.Errorf("Format = %s, want dir", src.Format)
	}
	got := readEntries(t, src.Entries)
	for _, want := range []string{"a.txt", "b.txt", "sub/signature", "sub/manifest.json"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing entry %s", want)
		}
	}
	if _, ok := got["drafts/notes.txt"]; ok {
		t.Error("ignored path was enumerated")
	}
	if len(src.Entries) != 4 {
		t.Errorf("got %d entries, want 4", len(src.Entries))
	}
}

func TestOpenSourceReservedNames(t *testing.T) {
	t.Run("collision", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "x", "manifest.json": "{}"})
		_, err := OpenSource(context.Background(), root, SourceOptions{})
		requireKind(t, err, signerr.KindReservedNameCollision)
	})

	t.Run("replace existing", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "x", "manifest.json": "{}", "signature": "old"})
		src, err := OpenSource(context.Background(), root, SourceOptions{ReplaceExisting: true})
		if err != nil {
			t.Fatalf("OpenSource() error = %v", err)
		}
		defer src.Close()
		if len(src.Entries) != 1 || src.Entries[0].Path != "a.txt" {
			t.Errorf("Entries = %v, want only a.txt", src.Entries)
		}
		if len(src.Replaced) != 2 || src.Replaced[0] != "manifest.json" || src.Replaced[1] != "signature" {
			t.Errorf("Replaced = %v", src.Replaced)
		}
	})

	t.Run("reserved directory", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"signature/x.txt": "x"})
		_, err := OpenSource(context.Background(), root, SourceOptions{ReplaceExisting: true})
		requireKind(t, err, signerr.KindReservedNameCollision)
	})
}

func TestOpenSourceSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(outside, []byte("linked"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTree(t, root, map[string]string{"a.txt": "x"})
	if err := os.Symlink(outside, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := OpenSource(context.Background(), root, SourceOptions{})
	requireKind(t, err, signerr.KindInvalidPath)

	src, err := OpenSource(context.Background(), root, SourceOptions{AllowSymlinks: true})
	if err != nil {
		t.Fatalf("OpenSource() with AllowSymlinks error = %v", err)
	}
	defer src.Close()
	if got := readEntries(t, src.Entries); got["link.txt"] != "linked" {
		t.Errorf("link.txt = %q, want linked", got["link.txt"])
	}
}

func TestOpenSourceArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "unsigned.zip")
	writeZip(t, dest, []zipMember{{"a.txt", "hello"}, {"b.txt", "world"}})

	src, err := OpenSource(context.Background(), dest, SourceOptions{})
	if err != nil {
		t.Fatalf("OpenSource() error = %v", err)
	}
	defer src.Close()
	if got := readEntries(t, src.Entries); got["a.txt"] != "hello" || got["b.txt"] != "world" {
		t.Errorf("entries = %v", got)
	}
}

type zipMember struct {
	name, content string
}

func writeZip(t *testing.T, p string, members []zipMember) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(m.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUnpackErrors(t *testing.T) {
	tests := []struct {
		name    string
		members []zipMember
		kind    signerr.Kind
	}{
		{
			name:    "missing signature",
			members: []zipMember{{"a.txt", "x"}, {"manifest.json", "{}"}},
			kind:    signerr.KindMalformedBundle,
		},
		{
			name:    "missing manifest",
			members: []zipMember{{"a.txt", "x"}, {"signature", "s"}},
			kind:    signerr.KindMalformedBundle,
		},
		{
			name:    "traversal",
			members: []zipMember{{"../evil.txt", "x"}, {"manifest.json", "{}"}, {"signature", "s"}},
			kind:    signerr.KindInvalidPath,
		},
		{
			name:    "absolute",
			members: []zipMember{{"/etc/passwd", "x"}, {"manifest.json", "{}"}, {"signature", "s"}},
			kind:    signerr.KindInvalidPath,
		},
		{
			name:    "duplicate member",
			members: []zipMember{{"a.txt", "x"}, {"a.txt", "y"}, {"manifest.json", "{}"}, {"signature", "s"}},
			kind:    signerr.KindMalformedBundle,
		},
		{
			name:    "reserved directory",
			members: []zipMember{{"signature/a.txt", "x"}, {"manifest.json", "{}"}},
			kind:    signerr.KindReservedNameCollision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "bad.pkpass")
			writeZip(t, p, tt.members)
			_, err := Unpack(context.Background(), p)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestUnpackUnrecognized(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bundle.bin")
	if err := os.WriteFile(p, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Unpack(context.Background(), p)
	requireKind(t, err, signerr.KindMalformedBundle)

	_, err = Unpack(context.Background(), filepath.Join(dir, "missing"))
	requireKind(t, err, signerr.KindMalformedBundle)
}

func TestFormats(t *testing.T) {
	for in, want := range map[string]Format{
		"":       FormatAuto,
		"dir":    FormatDirectory,
		"zip":    FormatZip,
		"pkpass": FormatZip,
		"tar.gz": FormatTarGz,
		"TGZ":    FormatTarGz,
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %s, %v, want %s", in, got, err, want)
		}
	}
	if _, err := ParseFormat("rar"); err == nil {
		t.Error("ParseFormat(rar) expected error")
	}

	for in, want := range map[string]Format{
		"out/pass.pkpass": FormatZip,
		"out/pass.ZIP":    FormatZip,
		"out/pass.tar.gz": FormatTarGz,
		"out/pass.tgz":    FormatTarGz,
		"out/pass":        FormatDirectory,
	} {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", in, got, want)
		}
	}
}

func packTarGz(t *testing.T) string {
	t.Helper()
	entries := []manifest.Entry{
		manifest.BytesEntry("a.txt", []byte("hello")),
		manifest.BytesEntry("b.txt", []byte("world")),
	}
	dest := filepath.Join(t.TempDir(), "pass.tar.gz")
	if err := Pack(context.Background(), entries, testManifest, testSignature, dest, PackOptions{Format: FormatTarGz}); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	return dest
}

func listDir(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	des, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return des
}

func TestUnpackTarGzSpoolsToDisk(t *testing.T) {
	dest := packTarGz(t)
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	u, err := Unpack(context.Background(), dest)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if n := len(listDir(t, tmp)); n != 1 {
		t.Fatalf("spool directories = %d, want 1", n)
	}
	if got := readEntries(t, u.Entries); got["a.txt"] != "hello" || got["b.txt"] != "world" {
		t.Errorf("entries = %v", got)
	}
	// Entries can be read again, as verification may reopen them.
	if got := readEntries(t, u.Entries); got["a.txt"] != "hello" {
		t.Errorf("second read = %v", got)
	}

	if err := u.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := len(listDir(t, tmp)); n != 0 {
		t.Errorf("spool directories left after Close = %d", n)
	}
}

func TestUnpackTarGzSizeLimits(t *testing.T) {
	dest := packTarGz(t)

	tests := []struct {
		name      string
		fileLimit int64
		total     int64
	}{
		{"member too large", 4, 1 << 20},
		{"archive too large", 1 << 20, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			t.Setenv("TMPDIR", tmp)

			oldFile, oldTotal := maxArchiveFileSize, maxArchiveTotalSize
			maxArchiveFileSize, maxArchiveTotalSize = tt.fileLimit, tt.total
			t.Cleanup(func() { maxArchiveFileSize, maxArchiveTotalSize = oldFile, oldTotal })

			_, err := Unpack(context.Background(), dest)
			requireKind(t, err, signerr.KindMalformedBundle)
			if n := len(listDir(t, tmp)); n != 0 {
				t.Errorf("spool directories left after failure = %d", n)
			}
		})
	}
}
