package otel

import (
	"context"

	"github.com/localmart/order/internal/jaeger"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// OtelController owns the tracer provider for the process lifetime.
type OtelController struct {
	traceProvider *sdktrace.TracerProvider
}

// MustInitOtel installs the global tracer provider and W3C propagator.
// Spans are batched into the jaeger collector.
func MustInitOtel() *OtelController {
	serviceName := viper.GetString("service.name")
	if serviceName == "" {
		serviceName = "order-svc"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(jaeger.MustNewJaeger()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OtelController{traceProvider: tp}
}

// Shutdown flushes any buffered spans.
func (o *OtelController) Shutdown() error {
	return o.traceProvider.Shutdown(context.Background())
}
