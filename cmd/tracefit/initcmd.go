package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracefit/tracefit/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and apply the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		fmt.Printf("Initialized tracefit database at %s\n", store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
