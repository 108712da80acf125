package com_http

// config http request setting
type config struct {
	headers map[string]string
}

func newConfig(options ...Option) *config {
	setting := &config{
		headers: make(map[string]string),
	}
	for _, f := range options {
		f(setting)
	}
	return setting
}

// Option configures how we set up the http request.
type Option func(s *config)

// WithHeader specifies the header to http request.
func WithHeader(key, value string) Option {
	return func(s *config) {
		s.headers[key] = value
	}
}
