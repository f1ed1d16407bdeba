package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/app"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	wclog "github.com/vovakirdan/wirechat-rooms/internal/log"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "wirechat",
		Short:         "WireChat realtime room messaging server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, overrides)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "config file path (default is ./config.yaml or $WIRECHAT_CONFIG_DEFAULT_PATH)")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")

	return cmd
}

func serve(ctx context.Context, configPath string, overrides config.Config) error {
	bootLogger := wclog.New("info", "console")

	cfg, resolvedPath, err := config.Load(bootLogger, configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := wclog.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", resolvedPath).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting wirechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
