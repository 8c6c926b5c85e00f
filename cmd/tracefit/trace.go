package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage/sqlite"
	"github.com/tracefit/tracefit/internal/trace"
)

var (
	traceDepth   int
	traceLateral bool
)

var traceCmd = &cobra.Command{
	Use:   "trace <entity-type> <entity-id>",
	Short: "Trace an entity's upstream and downstream chain",
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

		reg := schema.New(store)
		engine := trace.New(reg, store, logger)
		report, err := engine.Analyze(cmd.Context(), args[0], args[1], traceDepth, traceLateral)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if len(report.Gaps) > 0 {
			fmt.Fprintf(os.Stderr, "%d gap(s) detected\n", len(report.Gaps))
		}
		return nil
	},
}

func init() {
	traceCmd.Flags().IntVar(&traceDepth, "depth", 0, "Maximum traversal depth (default: engine cap)")
	traceCmd.Flags().BoolVar(&traceLateral, "lateral", false, "Include lateral links of the root entity")
	rootCmd.AddCommand(traceCmd)
}
