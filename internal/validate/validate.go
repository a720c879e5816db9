// SPDX-License-Identifier: MIT

// Package validate collects field-level failures so one pass over a
// configuration reports every bad value instead of stopping at the first.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FieldError is one rejected value.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError is returned by Validator.Err when at least one field failed.
type ValidationError struct {
	fields []FieldError
}

// Errors lists the failures in the order they were found.
func (e ValidationError) Errors() []FieldError {
	return e.fields
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		parts = append(parts, f.Error())
	}
	return "invalid " + strings.Join(parts, "; ")
}

// Validator accumulates FieldErrors. The zero value is ready to use.
type Validator struct {
	fields []FieldError
}

func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.fields = append(v.fields, FieldError{Field: field, Value: value, Message: message})
}

func (v *Validator) addf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

// IsValid reports whether nothing has failed so far.
func (v *Validator) IsValid() bool { return len(v.fields) == 0 }

// Err returns nil or a ValidationError holding a copy of the failures.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{fields: slices.Clone(v.fields)}
}

// NotEmpty rejects blank strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "must not be empty", value)
	}
}

// OneOf rejects values outside allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.addf(field, value, "%q is not one of %s", value, strings.Join(allowed, ", "))
	}
}

// LogLevel accepts any level name zerolog understands.
func (v *Validator) LogLevel(field, value string) {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(value))
	if err != nil || lvl == zerolog.NoLevel {
		v.addf(field, value, "unknown log level %q", value)
	}
}

// Positive rejects n <= 0.
func (v *Validator) Positive(field string, n int) {
	if n <= 0 {
		v.addf(field, n, "must be positive, got %d", n)
	}
}

// Range, FloatRange and DurationRange check inclusive bounds.
func (v *Validator) Range(field string, n, lo, hi int) {
	if n < lo || n > hi {
		v.addf(field, n, "%d is outside [%d, %d]", n, lo, hi)
	}
}

func (v *Validator) FloatRange(field string, f, lo, hi float64) {
	if f < lo || f > hi {
		v.addf(field, f, "%g is outside [%g, %g]", f, lo, hi)
	}
}

func (v *Validator) DurationRange(field string, d, lo, hi time.Duration) {
	if d < lo || d > hi {
		v.addf(field, d, "%s is outside [%s, %s]", d, lo, hi)
	}
}

// URL requires an absolute URL with a host and, when schemes is non-empty,
// one of the listed schemes.
func (v *Validator) URL(field, raw string, schemes []string) {
	if raw == "" {
		v.AddError(field, "must not be empty", raw)
		return
	}
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		v.addf(field, raw, "not a URL: %v", err)
	case u.Host == "":
		v.AddError(field, "URL has no host", raw)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.addf(field, raw, "scheme %q is not one of %s", u.Scheme, strings.Join(schemes, ", "))
	}
}

// ListenAddr accepts host:port with an optional IP or localhost host. Port 0
// asks the kernel for a free port.
func (v *Validator) ListenAddr(field, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.addf(field, addr, "not host:port: %v", err)
		return
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		v.addf(field, addr, "host %q is not an IP address", host)
		return
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		v.addf(field, addr, "port %q is not a number in [0, 65535]", port)
	}
}

// WritableDir creates path if needed and checks that files can be written
// into it.
func (v *Validator) WritableDir(field, path string) {
	if strings.TrimSpace(path) == "" {
		v.AddError(field, "must not be empty", path)
		return
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		v.addf(field, path, "cannot create: %v", err)
		return
	}
	f, err := os.CreateTemp(path, ".asentry-write-*")
	if err != nil {
		v.addf(field, path, "not writable: %v", err)
		return
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
}
