package ctxlogger

import (
	"context"
	"sync/atomic"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type webhookKey struct{}

type webhookEvent struct {
	provider string
	eventID  string
}

var serviceName atomic.Pointer[string]

// SetServiceName configures the service name added to every log entry.
func SetServiceName(name string) {
	serviceName.Store(&name)
}

// ContextWithWebhookEvent tags the context with the gateway notification being processed.
func ContextWithWebhookEvent(ctx context.Context, provider, eventID string) context.Context {
	if provider == "" && eventID == "" {
		return ctx
	}
	return context.WithValue(ctx, webhookKey{}, webhookEvent{provider: provider, eventID: eventID})
}

// FromContext returns a logger enriched with tracing and correlation metadata from context.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger using metadata in the context.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.String("correlation_id", correlation.ExtractCorrelationID(ctx)))
	fields = append(fields, ExtractTrace(ctx)...)

	name := "unknown"
	if namePtr := serviceName.Load(); namePtr != nil {
		name = *namePtr
	}
	fields = append(fields, zap.String("service", name))

	if evt, ok := ctx.Value(webhookKey{}).(webhookEvent); ok {
		fields = append(fields,
			zap.String("webhook_provider", evt.provider),
			zap.String("webhook_event_id", evt.eventID),
		)
	}

	return base.With(fields...)
}

// ExtractTrace pulls tracing identifiers from the context span.
func ExtractTrace(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
