// Finboard - finance dashboard server
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	loadEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads .env into the environment, then configures the default
// logger so DEBUG may come from either.
func loadEnv() {
	err := godotenv.Load()
	setupLogging()
	if err != nil {
		slog.Info("No .env file found, using environment variables")
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:          "finboard",
		Short:        "Finance dashboard server",
		Long:         "finboard serves the finance dashboard: navigation shell, login and registration overlays, and the finance chat assistant.",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(
		serve,
		newTranscriptCmd(),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
