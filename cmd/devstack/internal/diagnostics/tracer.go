// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package diagnostics provides span tracing for stack operations.

Bring-up phases and individual validation checks are wrapped in spans so
a slow service or a flaky check shows up in a trace view instead of
requiring log archaeology. Export is opt-in: without UNISON_OTLP_ENDPOINT
set, the no-op tracer is used and the overhead is a map lookup.
*/
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// otlpEndpointEnv selects the OTLP/gRPC collector address.
const otlpEndpointEnv = "UNISON_OTLP_ENDPOINT"

// Tracer records spans around operations.
//
// # Description
//
// StartSpan opens a span and returns the derived context plus an end
// function. The end function takes the operation error (nil on success)
// so span status reflects the outcome.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Tracer interface {
	// StartSpan opens a span named name with optional string attributes.
	// The returned func must be called exactly once to close the span.
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error))

	// Shutdown flushes any pending spans. Call once at process exit.
	Shutdown(ctx context.Context) error
}

// =============================================================================
// No-Op Implementation
// =============================================================================

// NoOpTracer satisfies Tracer without recording anything.
type NoOpTracer struct{}

// NewNoOpTracer creates a tracer that discards all spans.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// StartSpan implements Tracer; the returned end function does nothing.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Shutdown implements Tracer.
func (t *NoOpTracer) Shutdown(ctx context.Context) error {
	return nil
}

// =============================================================================
// OTel Implementation
// =============================================================================

// OTelTracer exports spans over OTLP/gRPC.
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOTelTracer creates a tracer exporting to the given OTLP endpoint.
//
// # Inputs
//
//   - ctx: Used for exporter setup
//   - serviceName: Reported as service.name on every span
//   - endpoint: Collector address, e.g. "localhost:4317"
//
// # Outputs
//
//   - *OTelTracer: Ready tracer; caller owns Shutdown
//   - error: If the exporter cannot be constructed
func NewOTelTracer(ctx context.Context, serviceName, endpoint string) (*OTelTracer, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &OTelTracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
	}, nil
}

// StartSpan implements Tracer.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(kvs...))

	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Shutdown flushes pending spans with a bounded grace period.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.provider.Shutdown(flushCtx)
}

// NewDefaultTracer returns an OTel tracer when UNISON_OTLP_ENDPOINT is
// set, otherwise a no-op tracer. Export failures degrade to no-op rather
// than blocking stack operations.
func NewDefaultTracer(ctx context.Context, serviceName string) Tracer {
	endpoint := os.Getenv(otlpEndpointEnv)
	if endpoint == "" {
		return NewNoOpTracer()
	}

	tracer, err := NewOTelTracer(ctx, serviceName, endpoint)
	if err != nil {
		return NewNoOpTracer()
	}
	return tracer
}

var _ Tracer = (*NoOpTracer)(nil)
var _ Tracer = (*OTelTracer)(nil)
