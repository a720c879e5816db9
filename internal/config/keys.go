// SPDX-License-Identifier: MIT

package config

// Environment variable names understood by the loader.
const (
	EnvConfigPath = "ASENTRY_CONFIG"

	EnvLogLevel  = "ASENTRY_LOG_LEVEL"
	EnvLogFormat = "ASENTRY_LOG_FORMAT"
	EnvDataDir   = "ASENTRY_DATA"
	// EnvLogLevelShared is the generic LOG_LEVEL; ASENTRY_LOG_LEVEL wins over it.
	EnvLogLevelShared = "LOG_LEVEL"

	EnvSentryURL     = "ASENTRY_SENTRY_URL"
	EnvPSMin         = "ASENTRY_PS_MIN"
	EnvSentryTimeout = "ASENTRY_SENTRY_TIMEOUT"

	EnvInterval    = "ASENTRY_INTERVAL"
	EnvSeedOnStart = "ASENTRY_SEED_ON_START"

	EnvStoreBackend  = "ASENTRY_STORE_BACKEND"
	EnvStorePath     = "ASENTRY_STORE_PATH"
	EnvRedisAddr     = "ASENTRY_REDIS_ADDR"
	EnvRedisPassword = "ASENTRY_REDIS_PASSWORD"
	EnvRedisDB       = "ASENTRY_REDIS_DB"

	EnvAlertBell    = "ASENTRY_ALERT_BELL"
	EnvAlertCommand = "ASENTRY_ALERT_COMMAND"
	EnvAlertSound   = "ASENTRY_ALERT_SOUND"
	EnvWebhookURL   = "ASENTRY_WEBHOOK_URL"

	EnvWatchLog = "ASENTRY_WATCH_LOG"

	EnvListen      = "ASENTRY_LISTEN"
	EnvMetricsAddr = "ASENTRY_METRICS_ADDR"

	EnvTracingEnabled = "ASENTRY_TRACING_ENABLED"
	EnvOTLPExporter   = "ASENTRY_OTLP_EXPORTER"
	EnvOTLPEndpoint   = "ASENTRY_OTLP_ENDPOINT"
	EnvTraceSampling  = "ASENTRY_TRACE_SAMPLING"

	EnvFirmwareDir     = "ASENTRY_FIRMWARE_DIR"
	EnvFirmwareEntries = "ASENTRY_FIRMWARE_ENTRIES"
	EnvAssetName       = "ASENTRY_ASSET_NAME"
)
