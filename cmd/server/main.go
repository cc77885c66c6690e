package main

import (
	approuters "Circlet/internal/app_routers"
	"Circlet/internal/configuration"
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "circlet",
		Short:        "Circlet realtime server (chat, presence, calls and notifications)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to JSON configuration file (default ./config.json or ./shared/config.json)")

	rootCmd.AddCommand(buildTokenCmd())
	return rootCmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := configuration.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := configuration.NewLogger(config.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	container, err := configuration.BuildContainer(ctx, config, logger)
	if err != nil {
		logger.Error("failed to build container", zap.Error(err))
		return err
	}

	// Ensure cleanup on shutdown
	defer func() {
		if err := container.Close(); err != nil {
			logger.Warn("cleanup finished with errors", zap.Error(err))
		}
	}()

	return approuters.StartServer(container)
}
