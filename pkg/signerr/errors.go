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

// Package signerr defines the error taxonomy shared by the signing and
// verification pipeline.
//
// Every failure that affects the outcome of a sign or verify operation is
// reported as an *Error carrying a Kind. Callers match on kinds with
// errors.Is against the exported sentinels or with IsKind:
//
//	if errors.Is(err, signerr.ErrDigestMismatch) {
//	    // a bundle file changed after signing
//	}
package signerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline error.
type Kind int

const (
	// KindUnknown indicates an unclassified error.
	KindUnknown Kind = iota

	// KindInvalidPath indicates an empty, absolute or traversing entry path.
	KindInvalidPath

	// KindDuplicatePath indicates two entries normalizing to the same path.
	KindDuplicatePath

	// KindMissingFile indicates a manifest path with no matching bundle entry.
	KindMissingFile

	// KindExtraFile indicates a bundle entry that the manifest does not list.
	KindExtraFile

	// KindDigestMismatch indicates an entry whose content no longer matches
	// the recorded digest.
	KindDigestMismatch

	// KindSigningKey indicates a private key that does not match the leaf
	// certificate.
	KindSigningKey

	// KindCertificateChain indicates a signing chain that is not a valid path
	// ending at the leaf certificate.
	KindCertificateChain

	// KindSignatureMismatch indicates a signature that was not computed over
	// the manifest bytes presented for verification.
	KindSignatureMismatch

	// KindUntrustedSigner indicates a chain that does not validate against
	// the configured trust anchors and policy.
	KindUntrustedSigner

	// KindMalformedBundle indicates a missing manifest or signature, or an
	// unrecognized container structure.
	KindMalformedBundle

	// KindReservedNameCollision indicates a source file occupying one of the
	// reserved manifest or signature names.
	KindReservedNameCollision

	// KindWrite indicates an I/O failure while writing a bundle.
	KindWrite
)

// String returns the error name used in reports.
func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "InvalidPathError"
	case KindDuplicatePath:
		return "DuplicatePathError"
	case KindMissingFile:
		return "MissingFileError"
	case KindExtraFile:
		return "ExtraFileError"
	case KindDigestMismatch:
		return "DigestMismatchError"
	case KindSigningKey:
		return "SigningKeyError"
	case KindCertificateChain:
		return "CertificateChainError"
	case KindSignatureMismatch:
		return "SignatureMismatchError"
	case KindUntrustedSigner:
		return "UntrustedSignerError"
	case KindMalformedBundle:
		return "MalformedBundleError"
	case KindReservedNameCollision:
		return "ReservedNameCollisionError"
	case KindWrite:
		return "WriteError"
	default:
		return "UnknownError"
	}
}

// MarshalText renders the kind by name so reports stay readable in JSON and YAML.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is the structured error type for pipeline failures.
type Error struct {
	// Kind categorizes the error for programmatic handling.
	Kind Kind

	// Path is the bundle-relative path involved, if any.
	Path string

	// Message is a human-readable description of what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidPath           = &Error{Kind: KindInvalidPath}
	ErrDuplicatePath         = &Error{Kind: KindDuplicatePath}
	ErrMissingFile           = &Error{Kind: KindMissingFile}
	ErrExtraFile             = &Error{Kind: KindExtraFile}
	ErrDigestMismatch        = &Error{Kind: KindDigestMismatch}
	ErrSigningKey            = &Error{Kind: KindSigningKey}
	ErrCertificateChain      = &Error{Kind: KindCertificateChain}
	ErrSignatureMismatch     = &Error{Kind: KindSignatureMismatch}
	ErrUntrustedSigner       = &Error{Kind: KindUntrustedSigner}
	ErrMalformedBundle       = &Error{Kind: KindMalformedBundle}
	ErrReservedNameCollision = &Error{Kind: KindReservedNameCollision}
	ErrWrite                 = &Error{Kind: KindWrite}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "failed"
	}
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s (path: %s): %v", e.Kind, msg, e.Path, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path: %s)", e.Kind, msg, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Message == "" && t.Cause == nil
}

// New creates a new error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewWithPath creates a new error of the given kind bound to a bundle path.
func NewWithPath(kind Kind, path, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
