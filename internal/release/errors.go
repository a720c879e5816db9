// SPDX-License-Identifier: MIT

package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAssetExists is returned when the release already carries an asset with
// the target name and replacement was not requested.
var ErrAssetExists = errors.New("release: asset already exists")

// APIError is a non-2xx answer from the release host.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
	Errors           []FieldError
}

// FieldError is one validation failure reported on a 422 answer.
type FieldError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "github: HTTP %d: %s", e.StatusCode, e.Message)
	for _, fe := range e.Errors {
		detail := fe.Message
		if detail == "" {
			detail = fe.Code
		}
		fmt.Fprintf(&b, "; %s.%s: %s", fe.Resource, fe.Field, detail)
	}
	return b.String()
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var wire struct {
		Message          string       `json:"message"`
		DocumentationURL string       `json:"documentation_url"`
		Errors           []FieldError `json:"errors"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
		apiErr.Errors = wire.Errors
	} else if len(body) > 0 {
		apiErr.Message = strings.TrimSpace(string(body))
	} else {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func statusIs(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsNotFound reports a 404 answer.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsUnauthorized reports a 401 or 403 answer.
func IsUnauthorized(err error) bool {
	return statusIs(err, http.StatusUnauthorized) || statusIs(err, http.StatusForbidden)
}

// IsAlreadyExists reports a duplicate asset, either detected locally or
// rejected by the host with 422 already_exists.
func IsAlreadyExists(err error) bool {
	if errors.Is(err, ErrAssetExists) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, fe := range apiErr.Errors {
		if fe.Code == "already_exists" {
			return true
		}
	}
	return false
}
