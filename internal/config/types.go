// SPDX-License-Identifier: MIT

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // json|console
	DataDir   string `yaml:"dataDir"`

	Sentry    SentryConfig    `yaml:"sentry"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Store     StoreConfig     `yaml:"store"`
	Alert     AlertConfig     `yaml:"alert"`
	Display   DisplayConfig   `yaml:"display"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Release   ReleaseConfig   `yaml:"release"`
}

// SentryConfig configures the upstream Sentry Data API client.
type SentryConfig struct {
	BaseURL string        `yaml:"baseURL"`
	PSMin   float64       `yaml:"psMin"` // minimum Palermo scale value requested
	Timeout time.Duration `yaml:"timeout"`

	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// MonitorConfig configures the polling loop.
type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	SeedOnStart bool          `yaml:"seedOnStart"`
}

// StoreConfig selects and configures the saved-object store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory|sqlite|redis|badger
	Path    string `yaml:"path"`    // sqlite file or badger directory; relative to DataDir

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redisDB"`
	RedisKey      string `yaml:"redisKey"`
}

// AlertConfig configures alert sinks. The log sink is always active.
type AlertConfig struct {
	Bell           bool          `yaml:"bell"`
	Command        []string      `yaml:"command"`   // player argv; the sound file is appended
	SoundFile      string        `yaml:"soundFile"` // relative to DataDir
	WebhookURL     string        `yaml:"webhookURL"`
	WebhookTimeout time.Duration `yaml:"webhookTimeout"`
}

// DisplayConfig configures the terminal panel used by `asentry watch`.
type DisplayConfig struct {
	Width     int           `yaml:"width"`
	Lines     int           `yaml:"lines"`
	IdleClear time.Duration `yaml:"idleClear"`
	// LogFile receives log output while `asentry watch` owns the terminal.
	// Empty discards it. Relative paths are under the data dir.
	LogFile string `yaml:"logFile,omitempty"`
}

// APIConfig configures the HTTP servers.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	MetricsAddr     string        `yaml:"metricsAddr"` // empty disables the metrics listener
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RefreshPerMin   int           `yaml:"refreshPerMinute"`
	RequestsPerMin  int           `yaml:"requestsPerMinute"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// ReleaseConfig configures firmware packaging and release upload.
// Credentials never come from the file.
type ReleaseConfig struct {
	FirmwareDir string   `yaml:"firmwareDir"`
	Entries     []string `yaml:"entries"`
	AssetName   string   `yaml:"assetName"` // may contain {tag}
	APIURL      string   `yaml:"apiURL"`
	UploadURL   string   `yaml:"uploadURL"`
	Replace     bool     `yaml:"replace"`
}
