// SPDX-License-Identifier: MIT

package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/platform/httpx"
	platformnet "github.com/asentry/asentry/internal/platform/net"
	"github.com/asentry/asentry/internal/threat"
	"github.com/asentry/asentry/internal/version"
)

// WebhookPayload is the JSON body posted to the webhook.
type WebhookPayload struct {
	Event   string          `json:"event"`
	SentAt  time.Time       `json:"sentAt"`
	Text    string          `json:"text"`
	Updates []threat.Update `json:"updates"`
}

// WebhookSink posts updates as JSON.
type WebhookSink struct {
	url  string
	http *http.Client
	now  func() time.Time
}

// NewWebhookSink validates rawURL and builds a sink with its own client.
func NewWebhookSink(rawURL string, timeout time.Duration) (*WebhookSink, error) {
	u, err := platformnet.ParseEndpoint(rawURL, false)
	if err != nil {
		return nil, fmt.Errorf("webhook url: %w", err)
	}
	return &WebhookSink{
		url:  u.String(),
		http: httpx.NewClient(timeout, httpx.WithTracing("webhook")),
		now:  time.Now,
	}, nil
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, updates []threat.Update) error {
	body, err := json.Marshal(WebhookPayload{
		Event:   "asentry.threats",
		SentAt:  s.now().UTC(),
		Text:    threat.Text(updates),
		Updates: updates,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "asentry/"+version.Version)
	if id := xglog.CycleIDFromContext(ctx); id != "" {
		req.Header.Set("X-Asentry-Cycle", id)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
