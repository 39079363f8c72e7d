// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	SourceIDKey    = "epg.source"
	SourceKindKey  = "epg.source_kind"
	ProvidersKey   = "epg.providers"
	ChannelsKey    = "epg.channels"
	ProgrammesKey  = "epg.programmes"
	DuplicatesKey  = "epg.duplicates_removed"
	TimezoneKey    = "epg.timezone"
	JobIDKey       = "job.id"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"
	ErrorKey       = "error"
	ErrorTypeKey   = "error.type"
)

// HTTPAttributes creates HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SourceAttributes identifies the source a span works on. Empty values
// are omitted.
func SourceAttributes(id, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if id != "" {
		attrs = append(attrs, attribute.String(SourceIDKey, id))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(SourceKindKey, kind))
	}
	return attrs
}

// ResultAttributes summarizes an engine run.
func ResultAttributes(providers, channels, programmes, duplicates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProvidersKey, providers),
		attribute.Int(ChannelsKey, channels),
		attribute.Int(ProgrammesKey, programmes),
		attribute.Int(DuplicatesKey, duplicates),
	}
}

// JobAttributes describes an ingestion job.
func JobAttributes(jobID, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes marks a span as failed with a coarse error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
