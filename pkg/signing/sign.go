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

// Package signing signs a bundle end to end: enumerate the source, build
// and serialize the manifest, sign it and write the signed bundle.
package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/sigstore/pass-signing/pkg/bundle"
	"github.com/sigstore/pass-signing/pkg/hashing"
	"github.com/sigstore/pass-signing/pkg/keys"
	"github.com/sigstore/pass-signing/pkg/lifecycle"
	"github.com/sigstore/pass-signing/pkg/logging"
	"github.com/sigstore/pass-signing/pkg/manifest"
	"github.com/sigstore/pass-signing/pkg/metrics"
	"github.com/sigstore/pass-signing/pkg/signature"
	"github.com/sigstore/pass-signing/pkg/signerr"
	"github.com/sigstore/pass-signing/pkg/tracing"
	"github.com/sigstore/pass-signing/pkg/utils"
)

// Result is the outcome of a signing operation.
type Result struct {
	Signed  bool
	Message string

	Destination    string
	Format         bundle.Format
	SignerIdentity string
	Entries        int
	// Replaced lists reserved files dropped from the source.
	Replaced []string
	Manifest []byte
}

// BundleSigner performs a complete signing run.
type BundleSigner interface {
	Sign(ctx context.Context) (Result, error)
}

// Options configures a signing run.
type Options struct {
	// Source is the unsigned bundle: a directory, zip or tar.gz.
	Source string
	// Destination receives the signed bundle.
	Destination string

	// Identifier selects credentials from Keys, e.g. a certificate name
	// suffix.
	Identifier string
	Keys       keys.KeyProvider

	// Algorithm defaults to hashing.DefaultAlgorithm.
	Algorithm string
	Workers   int
	ChunkSize int

	Format          bundle.Format
	IgnorePaths     []string
	AllowSymlinks   bool
	ReplaceExisting bool
	Overwrite       bool

	// Clock overrides the signing time.
	Clock   func() time.Time
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// PassSigner signs one bundle.
type PassSigner struct {
	opts   Options
	logger logging.Logger
}

var _ BundleSigner = (*PassSigner)(nil)

// NewPassSigner validates opts.
func NewPassSigner(opts Options) (*PassSigner, error) {
	if err := utils.ValidatePathExists("source", opts.Source); err != nil {
		return nil, err
	}
	if err := utils.ValidateOutputPath("destination", opts.Destination, opts.Overwrite); err != nil {
		return nil, err
	}
	if opts.Keys == nil {
		return nil, fmt.Errorf("a key provider is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = hashing.DefaultAlgorithm
	}
	if !hashing.IsSupported(opts.Algorithm) {
		return nil, fmt.Errorf("unsupported digest algorithm %q", opts.Algorithm)
	}
	opts.IgnorePaths = append([]string(nil), opts.IgnorePaths...)
	return &PassSigner{opts: opts, logger: logging.EnsureLogger(opts.Logger)}, nil
}

// Sign runs the signing pipeline with default options.
func Sign(ctx context.Context, opts Options) (Result, error) {
	s, err := NewPassSigner(opts)
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	return s.Sign(ctx)
}

// Sign signs the source and writes the signed bundle. It stops at the first
// error and leaves the destination untouched on failure.
func (s *PassSigner) Sign(ctx context.Context) (Result, error) {
	start := time.Now()
	machine := lifecycle.New(lifecycle.OpSign, s.logger, s.opts.Metrics)
	res := Result{Destination: s.opts.Destination}

	err := tracing.Run(ctx, "signing.Sign", map[string]interface{}{
		"source":      s.opts.Source,
		"destination": s.opts.Destination,
		"identifier":  s.opts.Identifier,
	}, func(ctx context.Context) error {
		return s.run(ctx, machine, &res)
	})
	s.opts.Metrics.ObserveOperation("sign", err, time.Since(start))
	if err != nil {
		machine.Fail(err)
		res.Signed = false
		res.Message = fmt.Sprintf("Signing failed: %v", err)
		return res, err
	}

	res.Signed = true
	res.Message = fmt.Sprintf("Signed %d file(s) as %s", res.Entries, res.SignerIdentity)
	s.logger.Info("Signed bundle written to %s", s.opts.Destination)
	return res, nil
}

func (s *PassSigner) run(ctx context.Context, m *lifecycle.Machine, res *Result) error {
	s.logger.Debug("Resolving credentials for %q", s.opts.Identifier)
	creds, err := s.opts.Keys.Credentials(ctx, s.opts.Identifier)
	if err != nil {
		return signerr.New(signerr.KindSigningKey,
			fmt.Sprintf("cannot load credentials for %q", s.opts.Identifier), err)
	}
	signerOpts := []signature.SignerOption{
		signature.WithDigestAlgorithm(s.opts.Algorithm),
		signature.WithSignerLogger(s.logger),
	}
	if s.opts.Clock != nil {
		signerOpts = append(signerOpts, signature.WithClock(s.opts.Clock))
	}
	signer, err := signature.NewSigner(creds.Signer, creds.Chain, signerOpts...)
	if err != nil {
		return err
	}
	res.SignerIdentity = signature.Identity(creds.Chain[0])

	if err := m.Advance(lifecycle.Enumerating); err != nil {
		return err
	}
	s.logger.Info("Enumerating %s", s.opts.Source)
	src, err := bundle.OpenSource(ctx, s.opts.Source, bundle.SourceOptions{
		IgnorePaths:     s.opts.IgnorePaths,
		AllowSymlinks:   s.opts.AllowSymlinks,
		ReplaceExisting: s.opts.ReplaceExisting,
	})
	if err != nil {
		return err
	}
	defer src.Close()
	for _, r := range src.Replaced {
		s.logger.Warn("Replacing existing %s", r)
	}
	res.Replaced = src.Replaced
	res.Entries = len(src.Entries)

	if err := m.Advance(lifecycle.ManifestBuilt); err != nil {
		return err
	}
	engine, err := hashing.New(s.opts.Algorithm, hashing.WithChunkSize(s.opts.ChunkSize))
	if err != nil {
		return err
	}
	builder, err := manifest.NewBuilder(engine, manifest.WithWorkers(s.opts.Workers), manifest.WithLogger(s.logger))
	if err != nil {
		return err
	}
	man, err := builder.Build(ctx, src.Entries)
	if err != nil {
		return err
	}
	manifestBytes, err := man.Serialize()
	if err != nil {
		return err
	}
	s.opts.Metrics.AddEntries(len(src.Entries), totalSize(src.Entries))
	s.logger.Info("Built manifest over %d file(s) with %s", man.Len(), engine.Algorithm())
	res.Manifest = manifestBytes

	if err := m.Advance(lifecycle.Signed); err != nil {
		return err
	}
	sig, err := signer.Sign(ctx, manifestBytes)
	if err != nil {
		return err
	}

	format := s.opts.Format
	if format == bundle.FormatAuto {
		format = bundle.FormatFromPath(s.opts.Destination)
	}
	res.Format = format
	if err := bundle.Pack(ctx, src.Entries, manifestBytes, sig, s.opts.Destination, bundle.PackOptions{
		Format:    format,
		Overwrite: s.opts.Overwrite,
	}); err != nil {
		return err
	}
	if err := m.Advance(lifecycle.Packaged); err != nil {
		return err
	}
	return m.Advance(lifecycle.Terminal)
}

func totalSize(entries []manifest.Entry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Size
	}
	return n
}
