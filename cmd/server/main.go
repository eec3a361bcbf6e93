package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lifeline/internal/platform/config"
	"lifeline/internal/platform/logger"
)

const programName = "lifeline"

var globalFlags = struct {
	debug bool
}{}

// loadConfig reads LIFELINE_* configuration and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if globalFlags.debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	return cfg, log, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Blood unit lifecycle and reservation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		sweepCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		stop()
		os.Exit(1)
	}
}
