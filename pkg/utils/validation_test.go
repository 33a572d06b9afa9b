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

package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func fixture(t *testing.T) (dir, file string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "pass.json")
	if err := os.WriteFile(file, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, file
}

func TestValidateFileAndFolder(t *testing.T) {
	dir, file := fixture(t)

	tests := []struct {
		name    string
		check   func(string, string) error
		path    string
		wantErr bool
	}{
		{"file ok", ValidateFileExists, file, false},
		{"file empty", ValidateFileExists, "", true},
		{"file missing", ValidateFileExists, filepath.Join(dir, "nope"), true},
		{"file is dir", ValidateFileExists, dir, true},
		{"folder ok", ValidateFolderExists, dir, false},
		{"folder is file", ValidateFolderExists, file, true},
		{"any file", ValidatePathExists, file, false},
		{"any dir", ValidatePathExists, dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check("input", tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMultiple(t *testing.T) {
	dir, file := fixture(t)

	tests := []struct {
		name    string
		paths   []string
		want    PathType
		wantErr bool
	}{
		{"all files", []string{file, file}, PathTypeFile, false},
		{"empty element", []string{file, ""}, PathTypeFile, true},
		{"missing", []string{filepath.Join(dir, "x.pem")}, PathTypeFile, true},
		{"dir as file", []string{dir}, PathTypeFile, true},
		{"none", nil, PathTypeFile, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMultiple("certificate chain", tt.paths, tt.want)
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	dir, file := fixture(t)

	if err := ValidateOutputPath("output", filepath.Join(dir, "out.pkpass"), false); err != nil {
		t.Errorf("fresh path: %v", err)
	}
	if err := ValidateOutputPath("output", file, false); err == nil {
		t.Error("existing path without overwrite: expected error")
	}
	if err := ValidateOutputPath("output", file, true); err != nil {
		t.Errorf("existing path with overwrite: %v", err)
	}
	if err := ValidateOutputPath("output", filepath.Join(file, "child"), true); err == nil {
		t.Error("parent is a file: expected error")
	}
	if err := ValidateOutputPath("output", "", true); err == nil {
		t.Error("empty path: expected error")
	}
}
