// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/asentry/asentry/internal/config"
	"github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/validate"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the runtime environment before the daemon
// starts: the data directory must be writable and both listen addresses
// must parse. Alert setup problems are only logged.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	v := validate.New()
	v.WritableDir("DataDir", cfg.DataDir)
	v.ListenAddr("API.ListenAddr", cfg.API.ListenAddr)
	if cfg.API.MetricsAddr != "" {
		v.ListenAddr("API.MetricsAddr", cfg.API.MetricsAddr)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	checkAlertSetup(logger, cfg)

	logger.Info().
		Str(log.FieldEvent, "startup.checks_passed").
		Str(log.FieldPath, cfg.DataDir).
		Msg("all startup checks passed")
	return nil
}

// checkAlertSetup only warns: a missing player or sound file silences that
// sink without stopping the daemon.
func checkAlertSetup(logger zerolog.Logger, cfg config.AppConfig) {
	if len(cfg.Alert.Command) == 0 {
		return
	}
	if _, err := exec.LookPath(cfg.Alert.Command[0]); err != nil {
		logger.Warn().Err(err).Str("command", cfg.Alert.Command[0]).Msg("alert player not found; sound alerts will fail")
	}
	sound := cfg.ResolvePath(cfg.Alert.SoundFile)
	if _, err := os.Stat(sound); err != nil {
		logger.Info().Str("path", sound).Msg("alert sound file not found; sound alerts are skipped")
	}
}
