// SPDX-License-Identifier: MIT

// Package config provides configuration management for asentry.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/asentry/asentry/internal/validate"
)

// StoreBackends lists the accepted store.backend values.
var StoreBackends = []string{"memory", "sqlite", "redis", "badger"}

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("LogLevel", cfg.LogLevel)
	v.OneOf("LogFormat", cfg.LogFormat, []string{"json", "console"})
	v.NotEmpty("DataDir", cfg.DataDir)

	v.URL("Sentry.BaseURL", cfg.Sentry.BaseURL, []string{"http", "https"})
	// The Palermo scale is logarithmic; values outside this band are meaningless.
	v.FloatRange("Sentry.PSMin", cfg.Sentry.PSMin, -20, 10)
	v.DurationRange("Sentry.Timeout", cfg.Sentry.Timeout, time.Second, 5*time.Minute)
	v.Range("Sentry.BreakerThreshold", cfg.Sentry.BreakerThreshold, 1, 100)
	v.DurationRange("Sentry.BreakerReset", cfg.Sentry.BreakerReset, time.Second, 24*time.Hour)

	// JPL refreshes Sentry at most a few times a day; polling faster is abusive.
	v.DurationRange("Monitor.Interval", cfg.Monitor.Interval, time.Minute, 7*24*time.Hour)

	v.OneOf("Store.Backend", cfg.Store.Backend, StoreBackends)
	switch cfg.Store.Backend {
	case "sqlite", "badger":
		v.NotEmpty("Store.Path", cfg.Store.Path)
	case "redis":
		v.NotEmpty("Store.RedisAddr", cfg.Store.RedisAddr)
		v.NotEmpty("Store.RedisKey", cfg.Store.RedisKey)
		v.Range("Store.RedisDB", cfg.Store.RedisDB, 0, 15)
	}

	if strings.TrimSpace(cfg.Alert.WebhookURL) != "" {
		v.URL("Alert.WebhookURL", cfg.Alert.WebhookURL, []string{"http", "https"})
		v.DurationRange("Alert.WebhookTimeout", cfg.Alert.WebhookTimeout, 100*time.Millisecond, time.Minute)
	}
	if len(cfg.Alert.Command) > 0 && strings.TrimSpace(cfg.Alert.Command[0]) == "" {
		v.AddError("Alert.Command", "player command cannot be empty", cfg.Alert.Command)
	}

	v.Range("Display.Width", cfg.Display.Width, 8, 400)
	v.Range("Display.Lines", cfg.Display.Lines, 1, 200)
	v.DurationRange("Display.IdleClear", cfg.Display.IdleClear, 0, time.Hour)

	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	if cfg.API.MetricsAddr != "" {
		v.ListenAddr("API.MetricsAddr", cfg.API.MetricsAddr)
	}
	v.Positive("API.RefreshPerMinute", cfg.API.RefreshPerMin)
	v.Positive("API.RequestsPerMinute", cfg.API.RequestsPerMin)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	v.NotEmpty("Release.FirmwareDir", cfg.Release.FirmwareDir)
	if len(cfg.Release.Entries) == 0 {
		v.AddError("Release.Entries", "at least one firmware entry is required", cfg.Release.Entries)
	}
	for _, e := range cfg.Release.Entries {
		if !filepath.IsLocal(e) {
			v.AddError("Release.Entries", "entry must be a relative path inside the firmware dir", e)
		}
	}
	v.NotEmpty("Release.AssetName", cfg.Release.AssetName)
	v.URL("Release.APIURL", cfg.Release.APIURL, []string{"http", "https"})
	v.URL("Release.UploadURL", cfg.Release.UploadURL, []string{"http", "https"})

	return v.Err()
}

// ResolvePath anchors a relative path at the data directory.
func (c AppConfig) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
