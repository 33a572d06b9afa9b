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

//go:build !otel

package tracing

import "context"

// Built reports whether the OpenTelemetry exporter is linked in.
const Built = false

// Init is a no-op without -tags=otel. The returned shutdown is never nil.
func Init(_ context.Context, _ Config) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
