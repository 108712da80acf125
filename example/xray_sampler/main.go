package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/server/webserve"
	"github.com/donetkit/contrib-xray/tracer"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	service     = "xray-sampler-example"
	environment = "development" // "production" "development"
)

func main() {
	log := glog.New()

	// the sampler polls until the web server stops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []tracer.RemoteSamplerOption{
		tracer.WithLogger(log),
		tracer.WithResource(tracer.NewResource(service, environment)),
	}
	if path := os.Getenv("XRAY_SAMPLER_CONFIG"); path != "" {
		fileOpts, err := tracer.LoadConfigFile(path)
		if err != nil {
			log.WithField("Example", service).Error(err)
			return
		}
		opts = append(opts, fileOpts...)
	}

	sampler, err := tracer.NewRemoteSampler(ctx, opts...)
	if err != nil {
		log.WithField("Example", service).Error(err)
		return
	}

	tp, err := tracer.NewTracerProvider(service, "127.0.0.1", environment, 6831, sampler)
	if err != nil {
		log.WithField("Example", service).Error(err)
		return
	}
	propagators := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	traceServer := tracer.New(tracer.WithName(service), tracer.WithProvider(tp), tracer.WithPropagators(propagators))

	helloHandler := func(w http.ResponseWriter, req *http.Request) {
		ctx := traceServer.Propagators.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		// sampling rules match on the attributes known when the span starts
		_, span := traceServer.Tracer.Start(ctx, req.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			traceServer.WithAttributes(
				semconv.HTTPMethodKey.String(req.Method),
				semconv.HTTPTargetKey.String(req.URL.Path),
				semconv.HTTPHostKey.String(req.Host),
			))
		defer span.End()

		span.AddEvent("handling this...")
		_, _ = io.WriteString(w, "Hello, world!\n")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/hello", helloHandler)

	web := webserve.New(
		webserve.WithServiceName(service),
		webserve.WithPort(7777),
		webserve.WithHandler(mux),
		webserve.WithLogger(log),
		webserve.WithTracer(traceServer),
	)
	if err := web.Run(ctx); err != nil {
		log.WithField("Example", service).Error(err)
	}
}
