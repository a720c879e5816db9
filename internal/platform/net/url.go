// SPDX-License-Identifier: MIT

// Package net validates the outbound endpoints asentry talks to.
package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidEndpoint is returned for URLs that are not plain http(s) endpoints.
	ErrInvalidEndpoint = errors.New("invalid endpoint url")
	// ErrInsecureEndpoint is returned for plain http endpoints on non-loopback hosts.
	ErrInsecureEndpoint = errors.New("endpoint must use https")
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// NormalizeHost lower-cases a host and converts IDNs to their ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// IsLoopback reports whether host names the local machine.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ParseEndpoint validates an http(s) endpoint without credentials or fragment.
// When secure is set, plain http is only accepted for loopback hosts.
func ParseEndpoint(raw string, secure bool) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.User != nil || u.Fragment != "" {
		return nil, fmt.Errorf("%w: credentials and fragments are not allowed", ErrInvalidEndpoint)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if secure && scheme != "https" && !IsLoopback(host) {
		return nil, fmt.Errorf("%w: %s", ErrInsecureEndpoint, SanitizeURL(raw))
	}

	u.Scheme = scheme
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}
