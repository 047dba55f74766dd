package main

import (
	"fmt"
	"os"

	"retailops/internal/config"
	"retailops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "retailops",
	Short: "Retail operations API",
	Long:  `Approvals, sales, product validity and analytics for a multi-branch retail chain.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger shared by every subcommand.
func bootstrap() (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "configs/.env", "Path to the .env file that fills unset variables")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
