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
	"errors"
	"testing"

	"github.com/sigstore/pass-signing/pkg/signerr"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "pass.json", "pass.json", false},
		{"nested", "en.lproj/pass.strings", "en.lproj/pass.strings", false},
		{"backslashes", `en.lproj\pass.strings`, "en.lproj/pass.strings", false},
		{"dot segments", "./a/./b.txt", "a/b.txt", false},
		{"double slash", "a//b.txt", "a/b.txt", false},
		{"trailing slash", "a/b/", "a/b", false},
		{"case preserved", "Icon@2x.PNG", "Icon@2x.PNG", false},
		{"dots in name", "a..b.txt", "a..b.txt", false},
		{"empty", "", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"absolute backslash", `\etc\passwd`, "", true},
		{"drive letter", "C:/secret.txt", "", true},
		{"parent", "../secret.txt", "", true},
		{"nested parent", "a/../../b", "", true},
		{"parent resolving inside", "a/../b", "", true},
		{"only dot", ".", "", true},
		{"invalid utf8", "a\xffb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, signerr.ErrInvalidPath) {
					t.Fatalf("NormalizePath(%q) error = %v, want InvalidPath", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsCanonical(t *testing.T) {
	if !IsCanonical("a/b.txt") {
		t.Error("a/b.txt should be canonical")
	}
	if IsCanonical("./a/b.txt") {
		t.Error("./a/b.txt should not be canonical")
	}
	if IsCanonical("../a") {
		t.Error("../a should not be canonical")
	}
}
