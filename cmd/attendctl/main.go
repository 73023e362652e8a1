package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Brownie44l1/attendance/internal/app"
	"github.com/Brownie44l1/attendance/internal/config"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "attendctl",
		Short:         "Operator tooling for the attendance service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file read before the environment")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(setWebhookCmd())
	rootCmd.AddCommand(inspectSessionCmd())
	rootCmd.AddCommand(purgeCodesCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, _, err := config.LoadConfig(envFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.LogLevel, "text")
	return cfg, log, nil
}

// withApp runs fn against a fully connected App.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
