package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var dispatchLimit int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Process one batch of the task queue and print the result as JSON",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchLimit, "limit", 0, "batch size (0 = dispatch.limit from config, capped at 50)")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	a.sink.Start()

	if a.dispatcher == nil {
		return errors.New("dispatch requires database.url and dispatch.executor_url")
	}
	if err := a.killSwitch.Init(ctx); err != nil {
		return fmt.Errorf("failed to init kill-switch manager: %w", err)
	}

	limit := dispatchLimit
	if limit == 0 {
		limit = cfg.Dispatch.Limit
	}
	res, err := a.dispatcher.ProcessQueue(ctx, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
