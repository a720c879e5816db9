// SPDX-License-Identifier: MIT

// Package sentry fetches impact-risk summaries from the JPL Sentry Data API.
package sentry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
	"github.com/asentry/asentry/internal/platform/httpx"
	platformnet "github.com/asentry/asentry/internal/platform/net"
	"github.com/asentry/asentry/internal/resilience"
	"github.com/asentry/asentry/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

const (
	// SignatureSource and SignatureVersion identify the only payload format understood.
	SignatureSource  = "NASA/JPL Sentry Data API"
	SignatureVersion = "2.0"

	maxBodyBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL          string
	PSMin            float64
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
	HTTPClient       *http.Client
}

// Client queries the Sentry summary endpoint.
type Client struct {
	endpoint string
	psMin    float64
	http     *http.Client
	breaker  *resilience.CircuitBreaker
}

type signature struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

type summary struct {
	Signature *signature `json:"signature"`
	Count     string     `json:"count"`
	Data      []Object   `json:"data"`
}

// New creates a client. Only http(s) base URLs are accepted.
func New(cfg Config) (*Client, error) {
	base, err := platformnet.ParseEndpoint(cfg.BaseURL, false)
	if err != nil {
		return nil, fmt.Errorf("sentry base url: %w", err)
	}

	q := url.Values{}
	q.Set("ps-min", strconv.FormatFloat(cfg.PSMin, 'f', -1, 64))
	base.Path += "/sentry.api"
	base.RawQuery = q.Encode()

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(cfg.Timeout, httpx.WithTracing("sentry"))
	}

	breaker := resilience.NewCircuitBreaker("sentry", cfg.BreakerThreshold, cfg.BreakerReset,
		resilience.WithFailurePredicate(upstreamFault))

	return &Client{
		endpoint: base.String(),
		psMin:    cfg.PSMin,
		http:     hc,
		breaker:  breaker,
	}, nil
}

// Endpoint returns the full summary URL queried by Fetch.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Breaker exposes the circuit breaker state for status reporting.
func (c *Client) Breaker() resilience.Snapshot {
	return c.breaker.Snapshot()
}

// Fetch returns the current list of objects at or above the configured
// Palermo threshold.
func (c *Client) Fetch(ctx context.Context) ([]Object, error) {
	ctx, span := telemetry.Tracer("asentry/sentry").Start(ctx, "sentry.fetch")
	defer span.End()

	start := time.Now()
	var objects []Object
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		objects, err = c.fetch(ctx)
		return err
	})

	outcome := Outcome(err)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		outcome = "circuit_open"
	}
	metrics.RecordSentryFetch(outcome, time.Since(start))

	logger := xglog.WithComponentFromContext(ctx, "sentry")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(telemetry.ErrorAttributes(outcome)...)
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "sentry.fetch_failed").
			Str("outcome", outcome).
			Dur("duration", time.Since(start)).
			Msg("sentry fetch failed")
		return nil, err
	}

	span.SetAttributes(telemetry.SentryAttributes(c.psMin, len(objects))...)
	metrics.SetSentryObjects(len(objects))
	logger.Debug().
		Str(xglog.FieldEvent, "sentry.fetch_ok").
		Int("objects", len(objects)).
		Dur("duration", time.Since(start)).
		Msg("sentry data fetched")
	return objects, nil
}

func (c *Client) fetch(ctx context.Context) ([]Object, error) {
	const op = "fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Sentinel: ErrBadStatus,
			Op:       op,
			Status:   resp.StatusCode,
			Reason:   http.StatusText(resp.StatusCode),
		}
	}

	var body summary
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		if isTimeout(err) {
			return nil, &Error{Sentinel: ErrTimeout, Op: op, Err: err}
		}
		return nil, &Error{Sentinel: ErrBadResponse, Op: op, Err: err}
	}

	if body.Signature == nil || body.Signature.Source != SignatureSource || body.Signature.Version != SignatureVersion {
		reason := "missing signature"
		if body.Signature != nil {
			reason = fmt.Sprintf("source %q version %q", body.Signature.Source, body.Signature.Version)
		}
		return nil, &Error{Sentinel: ErrUnexpectedFormat, Op: op, Reason: reason}
	}
	if body.Data == nil {
		body.Data = []Object{}
	}
	return body.Data, nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return &Error{Sentinel: ErrTimeout, Op: op, Err: err}
	}
	return &Error{Sentinel: ErrUnavailable, Op: op, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
