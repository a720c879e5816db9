// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldCycleID   = "cycle_id"
	FieldObjectID  = "object_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Release fields
	FieldTag        = "tag"
	FieldRepository = "repository"
	FieldAsset      = "asset"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
