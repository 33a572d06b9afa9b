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

// Package utils holds input validation shared by the key providers and the
// command line tool.
package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PathType is the kind of filesystem object a path must name.
type PathType int

const (
	PathTypeFile PathType = iota
	PathTypeFolder
	// PathTypeAny accepts a file or a directory.
	PathTypeAny
)

func (p PathType) String() string {
	switch p {
	case PathTypeFile:
		return "file"
	case PathTypeFolder:
		return "directory"
	}
	return "path"
}

// checkPath reports a readable error naming field when path is empty,
// missing or of the wrong kind.
func checkPath(field, path string, want PathType) error {
	if path == "" {
		return fmt.Errorf("%s is required", field)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %q does not exist", field, path)
	}
	if err != nil {
		return fmt.Errorf("checking %s %q: %w", field, path, err)
	}
	switch {
	case want == PathTypeFile && info.IsDir():
		return fmt.Errorf("%s %q is a directory, expected %s", field, path, want)
	case want == PathTypeFolder && !info.IsDir():
		return fmt.Errorf("%s %q is a file, expected %s", field, path, want)
	}
	return nil
}

// ValidateMultiple checks every path and returns the first failure. Empty
// elements are rejected.
func ValidateMultiple(field string, paths []string, want PathType) error {
	for i, p := range paths {
		if p == "" {
			return fmt.Errorf("%s contains empty path at index %d", field, i)
		}
		if err := checkPath(fmt.Sprintf("%s[%d]", field, i), p, want); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFileExists requires path to be an existing non-directory.
func ValidateFileExists(field, path string) error {
	return checkPath(field, path, PathTypeFile)
}

// ValidateFolderExists requires path to be an existing directory.
func ValidateFolderExists(field, path string) error {
	return checkPath(field, path, PathTypeFolder)
}

// ValidatePathExists requires path to exist.
func ValidatePathExists(field, path string) error {
	return checkPath(field, path, PathTypeAny)
}

// ValidateOutputPath checks that path can be created: it must be non-empty,
// its parent must be a directory when it exists, and path itself must not
// exist unless overwrite is set.
func ValidateOutputPath(field, path string, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("%s is required", field)
	}
	parent := filepath.Dir(path)
	if info, err := os.Stat(parent); err == nil && !info.IsDir() {
		return fmt.Errorf("%s parent %q is not a directory", field, parent)
	}
	if _, err := os.Lstat(path); err == nil && !overwrite {
		return fmt.Errorf("%s %q already exists", field, path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s %q: %w", field, path, err)
	}
	return nil
}
