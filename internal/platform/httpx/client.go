// SPDX-License-Identifier: MIT

// Package httpx builds the outbound HTTP clients used for Sentry, webhooks
// and release uploads.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 30 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultResponseHeaderTimeout = 15 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 8
	defaultMaxIdleConnsPerHost   = 2
)

type options struct {
	spanName      string
	headerTimeout time.Duration
}

// Option tunes a client built by NewClient.
type Option func(*options)

// WithTracing wraps the transport with otelhttp so every request gets a
// client span named after the operation.
func WithTracing(name string) Option {
	return func(o *options) { o.spanName = name }
}

// WithResponseHeaderTimeout overrides the response header cap. Uploads need
// longer than API calls because the server answers after the body is stored.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *options) { o.headerTimeout = d }
}

// NewClient returns an HTTP client with bounded dial, header and total timeouts.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	o := options{headerTimeout: defaultResponseHeaderTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	dialTimeout := min(timeout, defaultDialTimeout)
	headerTimeout := min(timeout, o.headerTimeout)

	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if o.spanName != "" {
		name := o.spanName
		rt = otelhttp.NewTransport(rt, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return name + " " + r.Method
		}))
	}

	return &http.Client{Timeout: timeout, Transport: rt}
}
