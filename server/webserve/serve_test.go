package webserve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/donetkit/contrib-xray/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestServerRunServesAndStops(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(recorder))
	traceServer := tracer.New(tracer.WithName("webserve-test"), tracer.WithProvider(tp))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, span := traceServer.Tracer.Start(r.Context(), r.URL.Path)
		defer span.End()
		_, _ = io.WriteString(w, "ok")
	})

	s := New(WithServiceName("webserve-test"), WithHost("127.0.0.1"), WithPort(0), WithHandler(handler), WithTracer(traceServer))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 5*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/hello", s.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "/hello", recorder.Ended()[0].Name())
}

func TestServerLogRequestsPassesThrough(t *testing.T) {
	s := New(WithHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Rule", "Default")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "created")
	})))

	rec := httptest.NewRecorder()
	s.logRequests(s.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Default", rec.Header().Get("X-Rule"))
	assert.Equal(t, "created", rec.Body.String())
}

func TestServerRunListenError(t *testing.T) {
	s := New(WithHost("127.0.0.1"), WithPort(-1))
	assert.Error(t, s.Run(context.Background()))
}
