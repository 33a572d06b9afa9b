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
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/hashing/digests"
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// Serialize returns the canonical manifest bytes.
//
// The encoding is a JSON object whose keys are the paths in byte order and
// whose values are "alg:hex" digests, indented by two spaces, without HTML
// escaping and with a trailing newline. The same mapping always produces the
// same bytes.
func (m *Manifest) Serialize() ([]byte, error) {
	// encoding/json writes map keys in sorted order.
	out := make(map[string]string, len(m.items))
	for id, d := range m.items {
		out[id] = d.String()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes manifest bytes produced by Serialize.
//
// The input must be a single JSON object of string values. Duplicate keys,
// non-canonical paths, unknown digest algorithms and digests of the wrong
// length are rejected. Path problems keep their InvalidPath kind; everything
// else is a MalformedBundle error.
func Parse(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed("manifest is not valid JSON", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, malformed("manifest must be a JSON object", nil)
	}

	items := make(map[string]digests.Digest)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, malformed("manifest is not valid JSON", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, malformed("manifest key is not a string", nil)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, malformed("manifest is not valid JSON", err)
		}
		val, ok := valTok.(string)
		if !ok {
			return nil, signerr.NewWithPath(signerr.KindMalformedBundle, key,
				"manifest value is not a string", nil)
		}

		if _, dup := items[key]; dup {
			return nil, signerr.NewWithPath(signerr.KindMalformedBundle, key,
				"manifest lists the path twice", nil)
		}
		if !IsCanonical(key) {
			if _, err := NormalizePath(key); err != nil {
				return nil, err
			}
			return nil, signerr.NewWithPath(signerr.KindInvalidPath, key,
				"manifest path is not in canonical form", nil)
		}

		d, err := parseDigest(key, val)
		if err != nil {
			return nil, err
		}
		items[key] = d
	}

	if tok, err := dec.Token(); err != nil {
		return nil, malformed("manifest is not valid JSON", err)
	} else if delim, ok := tok.(json.Delim); !ok || delim != '}' {
		return nil, malformed("manifest object is not terminated", nil)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data after manifest object", err)
	}

	return &Manifest{items: items}, nil
}

func parseDigest(path, value string) (digests.Digest, error) {
	d, err := digests.Parse(value)
	if err != nil {
		return digests.Digest{}, signerr.NewWithPath(signerr.KindMalformedBundle, path,
			"invalid digest", err)
	}

	size, ok := hashing.ExpectedSize(d.Algorithm())
	if !ok {
		return digests.Digest{}, signerr.NewWithPath(signerr.KindMalformedBundle, path,
			fmt.Sprintf("unsupported digest algorithm %q", d.Algorithm()), nil)
	}
	if d.Size() != size {
		return digests.Digest{}, signerr.NewWithPath(signerr.KindMalformedBundle, path,
			fmt.Sprintf("%s digest has %d bytes, want %d", d.Algorithm(), d.Size(), size), nil)
	}
	return d, nil
}

func malformed(msg string, cause error) error {
	return signerr.New(signerr.KindMalformedBundle, msg, cause)
}
