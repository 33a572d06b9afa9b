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
	"bytes"
	"io"
)

// Entry is one file of a bundle as seen by the builder.
//
// Path is relative to the bundle root. Open returns a fresh reader over the
// file content each time it is called; the builder closes it.
type Entry struct {
	Path string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesEntry returns an Entry backed by an in-memory copy of data.
func BytesEntry(path string, data []byte) Entry {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Entry{
		Path: path,
		Size: int64(len(buf)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		},
	}
}
