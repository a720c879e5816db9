// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asentry/asentry/internal/config"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/version"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	logLevel   string
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOptions{stderr: stderr}

	cmd := &cobra.Command{
		Use:           "asentry",
		Short:         "Asteroid impact-risk monitor and firmware release tool",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("asentry {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to YAML configuration file (env "+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newRunCmd(g),
		newCheckCmd(g),
		newWatchCmd(g),
		newBundleCmd(g),
		newReleaseCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// load resolves and loads the configuration, then sends logs to stderr.
func (g *globalOptions) load() (*config.Loader, config.AppConfig, error) {
	loader, cfg, err := g.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	g.configureLogging(cfg, g.stderr)
	return loader, cfg, nil
}

// loadConfig reads the configuration without touching the log output.
func (g *globalOptions) loadConfig() (*config.Loader, config.AppConfig, error) {
	path := strings.TrimSpace(g.configPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(config.EnvConfigPath))
	}
	g.configPath = path

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, cfg, fmt.Errorf("load configuration: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return loader, cfg, nil
}

func (g *globalOptions) configureLogging(cfg config.AppConfig, out io.Writer) {
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  out,
		Service: "asentry",
		Version: version.Version,
		Console: cfg.LogFormat == "console",
	})
	logger := xglog.WithComponent("cli")
	logger.Debug().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldPath, g.configPath).
		Msg("configuration loaded")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version, commit and build date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "asentry "+version.String())
			return err
		},
	}
}
