package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "promptstruct"

// StartSaveSpan starts a span for persisting a prompt file.
func StartSaveSpan(ctx context.Context, file, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "save_prompts",
		trace.WithAttributes(
			attribute.String("prompt.file", file),
			attribute.String("tree.op", op),
		),
	)
}

// StartApplySpan starts a span for handing compiled prompts to the generation backend.
func StartApplySpan(ctx context.Context, file string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "apply_prompts",
		trace.WithAttributes(attribute.String("prompt.file", file)),
	)
}
