// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Guide data fields
	FieldSource    = "source"
	FieldProvider  = "provider"
	FieldChannel   = "channel"
	FieldGuideLink = "guidelink"
	FieldTimezone  = "timezone"
	FieldDate      = "date"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
