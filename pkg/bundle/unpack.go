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

	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
)

// maxReservedFileSize bounds the manifest and signature read into memory.
const maxReservedFileSize = 64 << 20

// Unpacked is a signed bundle opened for verification.
type Unpacked struct {
	// Format is the container type.
	Format Format

	// Entries are the bundle files, excluding the reserved files, sorted by
	// path.
	Entries []manifest.Entry

	// Manifest is the raw manifest.json content.
	Manifest []byte

	// Signature is the raw signature content.
	Signature []byte

	closer io.Closer
}

// Close releases the underlying container.
func (u *Unpacked) Close() error {
	if u == nil || u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// Unpack opens the signed bundle at path.
//
// A missing manifest or signature, an unrecognized container and duplicate
// members are MalformedBundle errors. Unsafe member paths are InvalidPath
// errors.
func Unpack(ctx context.Context, path string) (*Unpacked, error) {
	var out *Unpacked
	err := tracing.Run(ctx, "bundle.Unpack", map[string]interface{}{"path": path}, func(ctx context.Context) error {
		format, err := DetectFormat(path)
		if err != nil {
			return err
		}
		files, closer, err := readContainer(ctx, path, format, false)
		if err != nil {
			return err
		}

		u := &Unpacked{Format: format, closer: closer}
		if err := u.fill(files); err != nil {
			_ = closer.Close()
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Unpacked) fill(files []file) error {
	entries, reserved, err := split(files)
	if err != nil {
		return err
	}

	m, ok := reserved[ManifestName]
	if !ok {
		return signerr.NewWithPath(signerr.KindMalformedBundle, ManifestName, "bundle has no manifest", nil)
	}
	s, ok := reserved[SignatureName]
	if !ok {
		return signerr.NewWithPath(signerr.KindMalformedBundle, SignatureName, "bundle has no signature", nil)
	}

	if u.Manifest, err = readReserved(m); err != nil {
		return err
	}
	if u.Signature, err = readReserved(s); err != nil {
		return err
	}
	u.Entries = entries
	return nil
}

func readReserved(e manifest.Entry) ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", e.Path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxReservedFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.Path, err)
	}
	if len(data) > maxReservedFileSize {
		return nil, signerr.NewWithPath(signerr.KindMalformedBundle, e.Path, "reserved file is too large", nil)
	}
	return data, nil
}
