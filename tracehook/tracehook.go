// Copyright 2026 The valkeygo Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracehook exposes the extension point a caller uses to wire
// this client into its own OpenTelemetry tracer. It carries
// go.opentelemetry.io/otel/trace span-context types only: no SDK, no
// exporter, no sampler ships here; tracing backends are an external
// collaborator the caller owns and configures.
package tracehook

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Hook is called around one round trip. StartCommand and StartRefresh
// are invoked before the work starts and return the context it runs
// under plus a Span that is ended when it finishes; Noop, used when a
// caller configures no Hook, costs nothing on either path.
type Hook interface {
	// StartCommand begins a span for a single command or pipeline
	// dispatched to addr, naming it after the first command's verb.
	StartCommand(ctx context.Context, addr, command string) (context.Context, Span)

	// StartRefresh begins a span for a cluster topology refresh
	// attempt.
	StartRefresh(ctx context.Context) (context.Context, Span)
}

// Span is the minimal lifecycle a Hook's spans must support. It
// mirrors the subset of trace.Span this module actually calls,
// letting a caller adapt any tracer (OpenTelemetry or otherwise)
// without this module depending on a concrete SDK.
type Span interface {
	// SetAttribute attaches one string attribute, e.g. "valkeygo.slot"
	// or "valkeygo.redirect".
	SetAttribute(key, value string)

	// RecordError marks the span as failed, if err is non-nil.
	RecordError(err error)

	// End closes the span.
	End()
}

// noopHook is the default Hook: every call is a no-op, so a caller
// that never sets a Hook pays nothing beyond an interface check.
type noopHook struct{}

func (noopHook) StartCommand(ctx context.Context, _, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopHook) StartRefresh(ctx context.Context) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, string) {}
func (noopSpan) RecordError(error)           {}
func (noopSpan) End()                        {}

// Noop is the zero-cost Hook used when a caller never configures one.
var Noop Hook = noopHook{}

// FromOTel adapts an OpenTelemetry trace.Tracer into a Hook, for
// callers that already run an OTel SDK and just want this module's
// round trips to show up as child spans.
func FromOTel(tracer trace.Tracer) Hook {
	return otelHook{tracer: tracer}
}

type otelHook struct {
	tracer trace.Tracer
}

func (h otelHook) StartCommand(ctx context.Context, addr, command string) (context.Context, Span) {
	ctx, span := h.tracer.Start(ctx, "valkeygo.command")
	span.SetAttributes(
		attrString("valkeygo.node", addr),
		attrString("valkeygo.command", command),
	)
	return ctx, otelSpan{span: span}
}

func (h otelHook) StartRefresh(ctx context.Context) (context.Context, Span) {
	ctx, span := h.tracer.Start(ctx, "valkeygo.topology_refresh")
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttribute(key, value string) {
	s.span.SetAttributes(attrString(key, value))
}

func (s otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
}

func (s otelSpan) End() {
	s.span.End()
}
