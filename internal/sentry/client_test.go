// SPDX-License-Identifier: MIT

package sentry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asentry/asentry/internal/resilience"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:          url,
		PSMin:            -3,
		Timeout:          2 * time.Second,
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	})
	require.NoError(t, err)
	return c
}

func serveFile(t *testing.T, path string) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sentry.api", r.URL.Path)
		assert.Equal(t, "-3", r.URL.Query().Get("ps-min"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_DecodesSummary(t *testing.T) {
	srv := serveFile(t, "testdata/summary.json")
	c := newTestClient(t, srv.URL)

	objects, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 3)

	want := Object{
		ID:          "bJ79X00B",
		Designation: "1979 XB",
		FullName:    "(1979 XB)",
		PSCum:       "-2.71",
		PSMax:       "-3.01",
		TSMax:       StringPtr("0"),
		IP:          "8.515158e-07",
		NImp:        4,
		Range:       "2056-2113",
		LastObs:     "1979-12-15",
		LastObsJD:   "2444222.5",
		H:           "18.54",
		Diameter:    "0.66",
		VInf:        "23.7606234552547",
	}
	if diff := cmp.Diff(want, objects[0]); diff != "" {
		t.Errorf("object mismatch (-want +got):\n%s", diff)
	}

	bennu := objects[2]
	assert.Nil(t, bennu.TSMax)
	_, ok := bennu.TorinoMax()
	assert.False(t, ok)
	ps, ok := bennu.PalermoCumulative()
	require.True(t, ok)
	assert.InDelta(t, -1.41, ps, 1e-9)
}

func TestNew_BuildsEndpoint(t *testing.T) {
	c, err := New(Config{BaseURL: "https://ssd-api.jpl.nasa.gov/", PSMin: -2.5})
	require.NoError(t, err)
	assert.Equal(t, "https://ssd-api.jpl.nasa.gov/sentry.api?ps-min=-2.5", c.Endpoint())

	_, err = New(Config{BaseURL: "ftp://example.org"})
	require.Error(t, err)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		sentinel error
		status   int
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
			sentinel: ErrBadStatus,
			status:   http.StatusServiceUnavailable,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"signature": [`))
			},
			sentinel: ErrBadResponse,
		},
		{
			name: "wrong version",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"signature":{"source":"NASA/JPL Sentry Data API","version":"1.0"},"data":[]}`))
			},
			sentinel: ErrUnexpectedFormat,
		},
		{
			name: "wrong source",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"signature":{"source":"someone else","version":"2.0"},"data":[]}`))
			},
			sentinel: ErrUnexpectedFormat,
		},
		{
			name: "missing signature",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[]}`))
			},
			sentinel: ErrUnexpectedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Fetch(context.Background())
			require.ErrorIs(t, err, tt.sentinel)

			var serr *Error
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.status, serr.Status)
			assert.Equal(t, Outcome(err), Outcome(tt.sentinel))
		})
	}
}

func TestFetch_EmptyDataIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"signature":{"source":"NASA/JPL Sentry Data API","version":"2.0"},"count":"0"}`))
	}))
	defer srv.Close()

	objects, err := newTestClient(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, objects)
	assert.Empty(t, objects)
}

func TestFetch_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url).Fetch(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL).Fetch(ctx)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestFetch_BreakerOpensAfterThreshold(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background())
		require.ErrorIs(t, err, ErrBadStatus)
	}

	_, err := c.Fetch(context.Background())
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach upstream")
	assert.Equal(t, resilience.StateOpen, c.Breaker().State)
}

func TestError_Message(t *testing.T) {
	err := &Error{Sentinel: ErrBadStatus, Op: "fetch", Status: 503, Reason: "Service Unavailable"}
	assert.Equal(t, "fetch: sentry: unexpected HTTP status (HTTP 503): Service Unavailable", err.Error())
}

func TestTorinoMaxString(t *testing.T) {
	assert.Equal(t, "None", Object{}.TorinoMaxString())
	assert.Equal(t, "1", Object{TSMax: StringPtr("1")}.TorinoMaxString())
}

func TestFetch_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background())
		require.ErrorIs(t, err, ErrBadStatus)
	}
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, resilience.StateClosed, c.Breaker().State)
}
