package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xela07ax/spaceai-governor/internal/infra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "governor",
	Short: "Agent governance core: guardrails, hard limits, task dispatch and schedules",
	Long: `governor decides whether an AI agent may perform an action under its
organization's trust configuration, records every decision to the audit trail,
dispatches queued agent tasks in priority order and computes recurring schedules.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
}

// loadRuntime читает конфиг и собирает логгер, общие для всех подкоманд.
func loadRuntime() (*infra.Config, *zap.Logger, error) {
	cfg, err := infra.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
