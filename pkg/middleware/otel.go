package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/reactor/pkg/reactor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for reactor runtimes.
const defaultTracerName = "reactor"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "reactor").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// Filter determines which steps to trace. Return true to trace the
	// step. If nil, all steps are traced.
	Filter func(step reactor.Step) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(step reactor.Step) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithStepFilter sets a filter function for steps.
func WithStepFilter(filter func(step reactor.Step) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(step reactor.Step) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every scheduler step.
//
// The middleware:
//   - Creates a span named "reactor.<step>" with tick, instance and effect
//     attributes
//   - Passes the span context to the wrapped step so nested steps become
//     child spans
//   - Records errors and sets span status
//
// Without WithTracerProvider the global provider is used. Configure it in
// main() before creating the runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) reactor.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return reactor.MiddlewareFunc(func(ctx context.Context, step reactor.Step, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(step) {
			return next(ctx)
		}

		attrs := stepAttributes(step)
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(step)...)
		}

		spanCtx, span := tracer.Start(ctx, spanName(step),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

func spanName(step reactor.Step) string {
	return fmt.Sprintf("reactor.%s", step.Kind)
}

func stepAttributes(step reactor.Step) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("reactor.step", step.Kind.String()),
	}
	if step.Tick > 0 {
		attrs = append(attrs, attribute.Int64("reactor.tick", int64(step.Tick)))
	}
	if step.Instance != 0 {
		attrs = append(attrs, attribute.Int64("reactor.instance", int64(step.Instance)))
	}
	if step.Position >= 0 {
		attrs = append(attrs, attribute.Int("reactor.effect.position", step.Position))
	}
	if step.Name != "" {
		attrs = append(attrs, attribute.String("reactor.name", step.Name))
	}
	return attrs
}
