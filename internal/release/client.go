// SPDX-License-Identifier: MIT

// Package release attaches firmware archives to GitHub releases.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/asentry/asentry/internal/platform/httpx"
	platformnet "github.com/asentry/asentry/internal/platform/net"
	"github.com/asentry/asentry/internal/version"
	"golang.org/x/time/rate"
)

const (
	apiVersion       = "2022-11-28"
	defaultBaseURL   = "https://api.github.com"
	defaultUploadURL = "https://uploads.github.com"
	maxErrorBody     = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string // REST API root; https unless loopback
	UploadURL  string // asset upload root; https unless loopback
	Token      string
	Repository string // owner/name
	Timeout    time.Duration
	RatePerSec float64 // request pacing; 0 uses 5/s
	HTTPClient *http.Client
}

// Client is a token-authenticated client for the release endpoints.
type Client struct {
	base    *url.URL
	upload  *url.URL
	token   string
	owner   string
	repo    string
	http    *http.Client
	limiter *rate.Limiter
}

// Release is the subset of a GitHub release used here.
type Release struct {
	ID        int64   `json:"id"`
	TagName   string  `json:"tag_name"`
	Name      string  `json:"name"`
	UploadURL string  `json:"upload_url"`
	Assets    []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	State       string `json:"state"`
	DownloadURL string `json:"browser_download_url"`
}

// FindAsset returns the asset with the given name.
func (r Release) FindAsset(name string) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("github: token is required")
	}
	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github: repository must be owner/name (got %q)", cfg.Repository)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	base, err := platformnet.ParseEndpoint(cfg.BaseURL, true)
	if err != nil {
		return nil, fmt.Errorf("github: api url: %w", err)
	}
	upload, err := platformnet.ParseEndpoint(cfg.UploadURL, true)
	if err != nil {
		return nil, fmt.Errorf("github: upload url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		hc = httpx.NewClient(timeout, httpx.WithTracing("github"), httpx.WithResponseHeaderTimeout(timeout))
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}

	return &Client{
		base:    base,
		upload:  upload,
		token:   cfg.Token,
		owner:   owner,
		repo:    repo,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

// Repository returns owner/name.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

func (c *Client) repoURL(root *url.URL, parts ...string) *url.URL {
	u := *root
	segs := append([]string{"repos", c.owner, c.repo}, parts...)
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = root.Path + "/" + strings.Join(segs, "/")
	u.RawPath = root.EscapedPath() + "/" + strings.Join(escaped, "/")
	return &u
}

// ReleaseByTag looks up the release for tag.
func (c *Client) ReleaseByTag(ctx context.Context, tag string) (Release, error) {
	var rel Release
	u := c.repoURL(c.base, "releases", "tags", tag)
	if err := c.do(ctx, http.MethodGet, u, nil, "", -1, &rel); err != nil {
		return Release{}, fmt.Errorf("release by tag %q: %w", tag, err)
	}
	return rel, nil
}

// UploadAsset attaches body to rel under name.
func (c *Client) UploadAsset(ctx context.Context, rel Release, name, contentType string, body io.Reader, size int64) (Asset, error) {
	u := c.repoURL(c.upload, "releases", strconv.FormatInt(rel.ID, 10), "assets")
	q := url.Values{}
	q.Set("name", name)
	u.RawQuery = q.Encode()

	var asset Asset
	if err := c.do(ctx, http.MethodPost, u, body, contentType, size, &asset); err != nil {
		return Asset{}, fmt.Errorf("upload asset %q: %w", name, err)
	}
	return asset, nil
}

// DeleteAsset removes an asset by id.
func (c *Client) DeleteAsset(ctx context.Context, id int64) error {
	u := c.repoURL(c.base, "releases", "assets", strconv.FormatInt(id, 10))
	if err := c.do(ctx, http.MethodDelete, u, nil, "", -1, nil); err != nil {
		return fmt.Errorf("delete asset %d: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body io.Reader, contentType string, size int64, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", "asentry/"+version.Version)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if size >= 0 && body != nil {
		req.ContentLength = size
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, platformnet.SanitizeURL(u.String()), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
