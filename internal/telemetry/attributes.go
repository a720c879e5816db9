// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used across asentry spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	SentryPSMinKey   = "sentry.ps_min"
	SentryObjectsKey = "sentry.objects"

	CycleIDKey       = "monitor.cycle_id"
	CycleNewKey      = "monitor.updates_new"
	CycleIncreaseKey = "monitor.updates_increased"

	ReleaseRepoKey  = "release.repository"
	ReleaseTagKey   = "release.tag"
	ReleaseAssetKey = "release.asset"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SentryAttributes describes a Sentry fetch.
func SentryAttributes(psMin float64, objects int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(SentryPSMinKey, psMin),
		attribute.Int(SentryObjectsKey, objects),
	}
}

// CycleAttributes describes a monitor cycle outcome.
func CycleAttributes(cycleID string, newCount, increased int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CycleIDKey, cycleID),
		attribute.Int(CycleNewKey, newCount),
		attribute.Int(CycleIncreaseKey, increased),
	}
}

// ReleaseAttributes describes a release upload. Empty values are omitted.
func ReleaseAttributes(repo, tag, asset string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if repo != "" {
		attrs = append(attrs, attribute.String(ReleaseRepoKey, repo))
	}
	if tag != "" {
		attrs = append(attrs, attribute.String(ReleaseTagKey, tag))
	}
	if asset != "" {
		attrs = append(attrs, attribute.String(ReleaseAssetKey, asset))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
