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

package options

import (
	"github.com/spf13/cobra"

	"github.com/sigstore/pass-signing/pkg/hashing"
)

// HashingFlags control how bundle files are digested. Shared by sign and
// verify.
type HashingFlags struct {
	Algorithm string
	Workers   int
	ChunkSize int
}

// AddFlags adds hashing flags to the cobra command.
func (o *HashingFlags) AddFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&o.Algorithm, "digest", hashing.DefaultAlgorithm, "Digest algorithm for manifest entries.")
	annotate(fs, "digest", "hashing.algorithm")
	fs.IntVar(&o.Workers, "workers", 0, "Files hashed in parallel. 0 uses the number of CPUs.")
	annotate(fs, "workers", "hashing.workers")
	fs.IntVar(&o.ChunkSize, "chunk-size", hashing.DefaultChunkSize, "Read buffer size in bytes.")
	annotate(fs, "chunk-size", "hashing.chunk_size")
}

// SourceFlags select which source files are signed.
type SourceFlags struct {
	IgnorePaths   []string
	AllowSymlinks bool
}

// AddFlags adds source selection flags to the cobra command.
func (o *SourceFlags) AddFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&o.IgnorePaths, "ignore-paths", nil, "Bundle paths to leave out of the signature.")
	annotate(fs, "ignore-paths", "hashing.ignore_paths")
	fs.BoolVar(&o.AllowSymlinks, "allow-symlinks", false, "Follow symlinks to regular files in a source directory.")
	annotate(fs, "allow-symlinks", "hashing.allow_symlinks")
}
