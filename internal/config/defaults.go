// SPDX-License-Identifier: MIT

package config

import "time"

// Default values shared by the loader and the CLI flag help texts.
const (
	DefaultSentryBaseURL = "https://ssd-api.jpl.nasa.gov"
	DefaultPSMin         = -3.0
	DefaultInterval      = time.Hour
	DefaultListenAddr    = ":8080"
	DefaultMetricsAddr   = ":9090"
	DefaultGitHubAPI     = "https://api.github.com"
	DefaultGitHubUploads = "https://uploads.github.com"
	DefaultAssetName     = "asentry-{tag}.zip"
)

// DefaultFirmwareEntries is the fixed firmware tree attached to releases.
var DefaultFirmwareEntries = []string{"code.py", "settings.toml", "lib"}

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		LogFormat: "json",
		DataDir:   "/var/lib/asentry",
		Sentry: SentryConfig{
			BaseURL:          DefaultSentryBaseURL,
			PSMin:            DefaultPSMin,
			Timeout:          30 * time.Second,
			BreakerThreshold: 3,
			BreakerReset:     5 * time.Minute,
		},
		Monitor: MonitorConfig{
			Interval: DefaultInterval,
		},
		Store: StoreConfig{
			Backend:  "sqlite",
			Path:     "asentry.db",
			RedisKey: "asentry:snapshot",
		},
		Alert: AlertConfig{
			SoundFile:      "alert.wav",
			WebhookTimeout: 10 * time.Second,
		},
		Display: DisplayConfig{
			Width:     32,
			Lines:     5,
			IdleClear: 10 * time.Second,
		},
		API: APIConfig{
			ListenAddr:      DefaultListenAddr,
			MetricsAddr:     DefaultMetricsAddr,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RefreshPerMin:   6,
			RequestsPerMin:  600,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Release: ReleaseConfig{
			FirmwareDir: "firmware",
			Entries:     append([]string(nil), DefaultFirmwareEntries...),
			AssetName:   DefaultAssetName,
			APIURL:      DefaultGitHubAPI,
			UploadURL:   DefaultGitHubUploads,
		},
	}
}
