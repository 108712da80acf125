package com_http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOption(t *testing.T) {
	setting := newConfig(
		WithHeader("Content-Type", "application/json"),
		WithHeader("Accept", "application/json"),
	)

	assert.Equal(t, &config{
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}, setting)
}

func TestDoPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	resp, err := DefaultHTTPClient().Do(context.Background(), http.MethodPost, srv.URL, []byte(`{"a":1}`), WithHeader("Content-Type", "application/json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
}

func TestDoReturnsContextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient(srv.Client()).Do(ctx, http.MethodPost, srv.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
