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

package cli

import (
	"github.com/sigstore/pass-signing/pkg/signerr"
)

// Exit codes.
const (
	// ExitCodeFailed means the bundle did not verify or could not be signed.
	ExitCodeFailed = 1
	// ExitCodeError means the operation could not run, e.g. unreadable input.
	ExitCodeError = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode implements main.ExitCoder.
func (e *ExitError) ExitCode() int { return e.Code }

// withExitCode classifies err: typed pipeline errors exit with ExitCodeFailed,
// anything else with ExitCodeError.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	if signerr.KindOf(err) != signerr.KindUnknown {
		return &ExitError{Err: err, Code: ExitCodeFailed}
	}
	return &ExitError{Err: err, Code: ExitCodeError}
}
