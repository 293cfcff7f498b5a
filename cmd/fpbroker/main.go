// fpbroker is the MQTT message-routing service.
//
// It connects to an MQTT broker, dispatches decoded messages to the
// journal, telemetry, stream and recording handlers, publishes status
// snapshots, and serves the HTTP API.
//
//	fpbroker serve --config configs/config.yaml
//	fpbroker migrate up|down|status --config configs/config.yaml
//	fpbroker version
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
	"github.com/nerrad567/fp-mqtt-broker/internal/service"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "FPBROKER_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(ctx, os.Stdout).Execute(); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCommand(ctx context.Context, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "fpbroker",
		Short:        "MQTT message-routing service",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetContext(ctx)

	root.AddCommand(newServeCommand(), newMigrateCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the broker and run until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("path to config.yaml (env %s, default %s)", configEnv, defaultConfigPath))

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fpbroker %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath prefers the flag, then FPBROKER_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// run loads configuration and runs the service until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting fpbroker",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	svc, err := service.New(service.Options{
		Config:  cfg,
		Logger:  log,
		Version: version,
	})
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}
