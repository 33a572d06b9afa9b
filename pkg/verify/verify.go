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

// Package verify checks a signed bundle end to end.
//
// Integrity (every file against manifest.json) and authenticity (the
// signature over manifest.json) are evaluated independently and both are
// reported; a bundle verifies only when both pass.
package verify

import (
	"context"
	"errors"
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

// Violation is one integrity problem.
type Violation = manifest.Violation

// SignatureStatus is the authenticity half of a report.
type SignatureStatus struct {
	Valid bool `json:"valid" yaml:"valid"`
	// Kind and Reason explain a failure.
	Kind   signerr.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Reason string       `json:"reason,omitempty" yaml:"reason,omitempty"`

	SignerIdentity  string     `json:"signerIdentity,omitempty" yaml:"signerIdentity,omitempty"`
	Fingerprint     string     `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	SignedAt        *time.Time `json:"signedAt,omitempty" yaml:"signedAt,omitempty"`
	DigestAlgorithm string     `json:"digestAlgorithm,omitempty" yaml:"digestAlgorithm,omitempty"`
}

// Result is a verification report.
type Result struct {
	Verified bool   `json:"verified" yaml:"verified"`
	Message  string `json:"message" yaml:"message"`

	Bundle string `json:"bundle" yaml:"bundle"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Entries counts bundle files other than the reserved ones.
	Entries int `json:"entries" yaml:"entries"`

	// SignerIdentity is set only when Verified is true.
	SignerIdentity string          `json:"signerIdentity,omitempty" yaml:"signerIdentity,omitempty"`
	Violations     []Violation     `json:"violations" yaml:"violations"`
	Signature      SignatureStatus `json:"signature" yaml:"signature"`
}

// Err joins every violation and the signature failure, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Violations)+1)
	for _, v := range r.Violations {
		errs = append(errs, v.Err())
	}
	if !r.Signature.Valid {
		errs = append(errs, signerr.New(r.Signature.Kind, r.Signature.Reason, nil))
	}
	return errors.Join(errs...)
}

// BundleVerifier performs a complete verification run.
type BundleVerifier interface {
	Verify(ctx context.Context) (Result, error)
}

// Options configures a verification run.
type Options struct {
	// Bundle is the signed directory, zip or tar.gz.
	Bundle string

	// Trust is used as is when set. Otherwise TrustAnchors and Policy build
	// one per run. With neither, every signature is untrusted.
	Trust        *signature.TrustContext
	TrustAnchors keys.TrustAnchorProvider
	Policy       signature.Policy

	// Algorithm hashes files the manifest does not list. Listed files use
	// the algorithm recorded for them.
	Algorithm string
	Workers   int
	ChunkSize int

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// PassVerifier verifies one bundle.
type PassVerifier struct {
	opts   Options
	logger logging.Logger
}

var _ BundleVerifier = (*PassVerifier)(nil)

// NewPassVerifier validates opts.
func NewPassVerifier(opts Options) (*PassVerifier, error) {
	if err := utils.ValidatePathExists("bundle", opts.Bundle); err != nil {
		return nil, err
	}
	if opts.Algorithm == "" {
		opts.Algorithm = hashing.DefaultAlgorithm
	}
	if !hashing.IsSupported(opts.Algorithm) {
		return nil, fmt.Errorf("unsupported digest algorithm %q", opts.Algorithm)
	}
	return &PassVerifier{opts: opts, logger: logging.EnsureLogger(opts.Logger)}, nil
}

// Verify runs the verification pipeline with default options.
func Verify(ctx context.Context, opts Options) (Result, error) {
	v, err := NewPassVerifier(opts)
	if err != nil {
		return Result{Bundle: opts.Bundle, Message: err.Error()}, err
	}
	return v.Verify(ctx)
}

// Verify checks the bundle. The returned error is nil exactly when
// Result.Verified is true. Verification problems are typed signerr errors
// joined together; any other error means the check could not complete.
func (v *PassVerifier) Verify(ctx context.Context) (Result, error) {
	start := time.Now()
	machine := lifecycle.New(lifecycle.OpVerify, v.logger, v.opts.Metrics)
	res := Result{
		Bundle:     v.opts.Bundle,
		Violations: []Violation{},
		Signature:  SignatureStatus{Reason: "not checked"},
	}

	err := tracing.Run(ctx, "verify.Verify", map[string]interface{}{"bundle": v.opts.Bundle}, func(ctx context.Context) error {
		return v.run(ctx, machine, &res)
	})
	if err != nil {
		machine.Fail(err)
		if kind := signerr.KindOf(err); kind != signerr.KindUnknown {
			// The bundle could not be opened; report it like any other
			// violation.
			var se *signerr.Error
			errors.As(err, &se)
			res.Violations = append(res.Violations, Violation{Path: se.Path, Kind: kind, Reason: se.Message})
			v.opts.Metrics.AddViolation(kind.String())
		}
		res.Verified = false
		res.SignerIdentity = ""
		res.Message = fmt.Sprintf("Verification failed: %v", err)
		v.opts.Metrics.ObserveOperation("verify", err, time.Since(start))
		return res, err
	}

	verr := res.Err()
	v.opts.Metrics.ObserveOperation("verify", verr, time.Since(start))
	if verr != nil {
		res.Verified = false
		res.SignerIdentity = ""
		res.Message = failureMessage(&res)
		v.logger.Warn("%s", res.Message)
		return res, verr
	}

	res.Verified = true
	res.SignerIdentity = res.Signature.SignerIdentity
	res.Message = fmt.Sprintf("Verification succeeded: %d file(s) signed by %s", res.Entries, res.SignerIdentity)
	v.logger.Info("%s", res.Message)
	return res, nil
}

func (v *PassVerifier) run(ctx context.Context, m *lifecycle.Machine, res *Result) error {
	if err := m.Advance(lifecycle.Enumerating); err != nil {
		return err
	}
	v.logger.Info("Reading %s", v.opts.Bundle)
	u, err := bundle.Unpack(ctx, v.opts.Bundle)
	if err != nil {
		return err
	}
	defer u.Close()
	res.Format = u.Format.String()
	res.Entries = len(u.Entries)

	if err := m.Advance(lifecycle.ManifestBuilt); err != nil {
		return err
	}
	if err := v.checkIntegrity(ctx, u, res); err != nil {
		return err
	}

	if err := m.Advance(lifecycle.Verified); err != nil {
		return err
	}
	if err := v.checkSignature(ctx, u, res); err != nil {
		return err
	}

	if err := m.Advance(lifecycle.Reported); err != nil {
		return err
	}
	for _, vi := range res.Violations {
		v.opts.Metrics.AddViolation(vi.Kind.String())
		v.logger.WithFields(map[string]interface{}{"path": vi.Path, "kind": vi.Kind.String()}).Warn("%s", vi.Reason)
	}
	if !res.Signature.Valid {
		v.opts.Metrics.AddViolation(res.Signature.Kind.String())
	}
	return m.Advance(lifecycle.Terminal)
}

// checkIntegrity records integrity violations in res. A non-nil error means
// hashing could not complete.
func (v *PassVerifier) checkIntegrity(ctx context.Context, u *bundle.Unpacked, res *Result) error {
	claimed, err := manifest.Parse(u.Manifest)
	if err != nil {
		res.Violations = append(res.Violations, Violation{
			Path:   manifest.FileName,
			Kind:   signerr.KindOf(err),
			Reason: err.Error(),
		})
		return nil
	}

	engine, err := hashing.New(v.opts.Algorithm, hashing.WithChunkSize(v.opts.ChunkSize))
	if err != nil {
		return err
	}
	builder, err := manifest.NewBuilder(engine, manifest.WithWorkers(v.opts.Workers), manifest.WithLogger(v.logger))
	if err != nil {
		return err
	}
	result, err := builder.Verify(ctx, claimed, u.Entries)
	if signerr.IsKind(err, signerr.KindMalformedBundle) {
		res.Violations = append(res.Violations, Violation{
			Path:   manifest.FileName,
			Kind:   signerr.KindMalformedBundle,
			Reason: err.Error(),
		})
		return nil
	}
	if err != nil {
		return err
	}
	v.opts.Metrics.AddEntries(len(u.Entries), totalSize(u.Entries))
	res.Violations = append(res.Violations, result.Violations...)
	return nil
}

// checkSignature fills res.Signature. Only cancellation and trust provider
// failures are returned as errors.
func (v *PassVerifier) checkSignature(ctx context.Context, u *bundle.Unpacked, res *Result) error {
	trust, err := v.trust(ctx)
	if err != nil {
		return err
	}

	ver, err := signature.Verify(ctx, u.Manifest, u.Signature, trust)
	if err != nil {
		kind := signerr.KindOf(err)
		if kind == signerr.KindUnknown {
			return err
		}
		res.Signature = SignatureStatus{Valid: false, Kind: kind, Reason: err.Error()}
		return nil
	}

	signedAt := ver.SignedAt
	res.Signature = SignatureStatus{
		Valid:           true,
		SignerIdentity:  ver.SignerIdentity,
		Fingerprint:     signature.Fingerprint(ver.Leaf),
		SignedAt:        &signedAt,
		DigestAlgorithm: ver.DigestAlgorithm,
	}
	v.logger.Debug("Signature by %s verified", ver.SignerIdentity)
	return nil
}

func (v *PassVerifier) trust(ctx context.Context) (*signature.TrustContext, error) {
	if v.opts.Trust != nil {
		return v.opts.Trust, nil
	}
	if v.opts.TrustAnchors == nil {
		return nil, nil
	}
	roots, intermediates, err := v.opts.TrustAnchors.TrustAnchors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust anchors: %w", err)
	}
	return signature.NewTrustContext(roots, intermediates, v.opts.Policy)
}

func failureMessage(r *Result) string {
	sig := "valid"
	if !r.Signature.Valid {
		sig = r.Signature.Kind.String()
	}
	return fmt.Sprintf("Verification failed: %d integrity violation(s), signature %s", len(r.Violations), sig)
}

func totalSize(entries []manifest.Entry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Size
	}
	return n
}
