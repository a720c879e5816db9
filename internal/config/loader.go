// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	mu              sync.Mutex
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath means
// environment and defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the file the loader reads, if any.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is fixed: defaults -> strict file parse -> env overrides -> validate.
func (l *Loader) Load() (AppConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of dst. Unknown keys, multiple
// documents and trailing content are rejected.
func (l *Loader) loadFile(path string, dst *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// mergeEnv applies ASENTRY_* overrides on top of file and defaults.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, l.envString(EnvLogLevelShared, cfg.LogLevel))
	cfg.LogFormat = l.envString(EnvLogFormat, cfg.LogFormat)
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)

	cfg.Sentry.BaseURL = l.envString(EnvSentryURL, cfg.Sentry.BaseURL)
	cfg.Sentry.PSMin = l.envFloat(EnvPSMin, cfg.Sentry.PSMin)
	cfg.Sentry.Timeout = l.envDuration(EnvSentryTimeout, cfg.Sentry.Timeout)

	cfg.Monitor.Interval = l.envDuration(EnvInterval, cfg.Monitor.Interval)
	cfg.Monitor.SeedOnStart = l.envBool(EnvSeedOnStart, cfg.Monitor.SeedOnStart)

	cfg.Store.Backend = l.envString(EnvStoreBackend, cfg.Store.Backend)
	cfg.Store.Path = l.envString(EnvStorePath, cfg.Store.Path)
	cfg.Store.RedisAddr = l.envString(EnvRedisAddr, cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = l.envString(EnvRedisPassword, cfg.Store.RedisPassword)
	cfg.Store.RedisDB = l.envInt(EnvRedisDB, cfg.Store.RedisDB)

	cfg.Alert.Bell = l.envBool(EnvAlertBell, cfg.Alert.Bell)
	if cmd := l.envString(EnvAlertCommand, ""); cmd != "" {
		cfg.Alert.Command = strings.Fields(cmd)
	}
	cfg.Alert.SoundFile = l.envString(EnvAlertSound, cfg.Alert.SoundFile)
	cfg.Alert.WebhookURL = l.envString(EnvWebhookURL, cfg.Alert.WebhookURL)

	cfg.Display.LogFile = l.envString(EnvWatchLog, cfg.Display.LogFile)

	cfg.API.ListenAddr = l.envString(EnvListen, cfg.API.ListenAddr)
	cfg.API.MetricsAddr = l.envString(EnvMetricsAddr, cfg.API.MetricsAddr)

	cfg.Telemetry.Enabled = l.envBool(EnvTracingEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)

	cfg.Release.FirmwareDir = l.envString(EnvFirmwareDir, cfg.Release.FirmwareDir)
	cfg.Release.Entries = l.envList(EnvFirmwareEntries, cfg.Release.Entries)
	cfg.Release.AssetName = l.envString(EnvAssetName, cfg.Release.AssetName)
}
