package tracer

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

const environmentKey = attribute.Key("environment")

// NewResource describes service for both the exporter and the remote sampler, which matches
// the ServiceName of sampling rules against service.name.
func NewResource(service, environment string, attrs ...attribute.KeyValue) *resource.Resource {
	kvs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(service),
		environmentKey.String(environment),
	}, attrs...)
	return resource.NewWithAttributes(semconv.SchemaURL, kvs...)
}

// NewTracerProvider returns a provider exporting to the Jaeger agent at host:port. A nil
// sampler samples every trace.
func NewTracerProvider(service, host, environment string, port int, sampler sdktrace.Sampler) (*sdktrace.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithAgentEndpoint(jaeger.WithAgentHost(host), jaeger.WithAgentPort(fmt.Sprintf("%d", port))))
	if err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = sdktrace.AlwaysSample()
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(NewResource(service, environment)),
	), nil
}
