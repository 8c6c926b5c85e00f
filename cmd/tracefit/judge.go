package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracefit/tracefit/internal/fit"
	"github.com/tracefit/tracefit/internal/storage/sqlite"
	"github.com/tracefit/tracefit/internal/types"
)

var judgeCmd = &cobra.Command{
	Use:   "judge <node-id> <fit|gap|partialFit|->",
	Short: "Record (or clear, with -) a level-4 fit judgment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		raw := args[1]
		if raw == "-" {
			raw = ""
		}
		j := types.FitJudgment(raw)
		if !j.IsValid() {
			return fmt.Errorf("invalid fit judgment: %q", args[1])
		}

		engine := fit.New(store, logger)
		if err := engine.SetJudgment(cmd.Context(), args[0], j, currentActor()); err != nil {
			return err
		}
		if j.IsSet() {
			fmt.Printf("Judged %s as %s\n", args[0], j)
		} else {
			fmt.Printf("Cleared judgment on %s\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(judgeCmd)
}
