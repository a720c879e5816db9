// SPDX-License-Identifier: MIT

package config

import "errors"

// Strict-parse failures, matched with errors.Is.
var (
	ErrUnknownConfigField = errors.New("config: unknown field")
	ErrMultipleDocuments  = errors.New("config: file must hold exactly one YAML document")
)
