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

// Package tracing wraps sign and verify phases in spans.
//
// The default build carries a no-op tracer and no exporter. Building with
// -tags=otel links the OpenTelemetry SDK and exports spans over OTLP/HTTP
// once Init is called with tracing enabled.
package tracing

import (
	"context"
	"sync"
)

// Span is one timed operation.
type Span interface {
	SetAttribute(key string, value interface{})
	// RecordError marks the span as failed.
	RecordError(err error)
	End()
}

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Config selects the exporter. Empty fields fall back to the standard
// OTEL_* environment variables.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// DefaultServiceName is reported when neither Config nor OTEL_SERVICE_NAME
// names the service.
const DefaultServiceName = "pass-signing"

var (
	mu           sync.RWMutex
	globalTracer Tracer = NoopTracer{}
)

// SetTracer replaces the process tracer. nil restores the no-op tracer.
func SetTracer(t Tracer) {
	mu.Lock()
	defer mu.Unlock()
	if t == nil {
		t = NoopTracer{}
	}
	globalTracer = t
}

// GetTracer returns the process tracer, never nil.
func GetTracer() Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return globalTracer
}

// Enabled reports whether spans are recorded.
func Enabled() bool {
	_, noop := GetTracer().(NoopTracer)
	return !noop
}

// Run executes fn inside a span named name. attrs are attached before fn
// runs and a non-nil error from fn is recorded on the span. Without a real
// tracer fn is called directly.
func Run(ctx context.Context, name string, attrs map[string]interface{}, fn func(context.Context) error) error {
	t := GetTracer()
	if _, noop := t.(NoopTracer); noop {
		return fn(ctx)
	}
	ctx, span := t.Start(ctx, name)
	defer span.End()
	for k, v := range attrs {
		span.SetAttribute(k, v)
	}
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
