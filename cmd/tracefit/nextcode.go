package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracefit/tracefit/internal/seq"
	"github.com/tracefit/tracefit/internal/storage/sqlite"
)

var (
	nextCodeProject string
	nextCodePrefix  string
)

var nextCodeCmd = &cobra.Command{
	Use:   "next-code",
	Short: "Allocate the next sequential entity code",
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

		code, err := seq.New(store).NextCode(cmd.Context(), nextCodeProject, nextCodePrefix)
		if err != nil {
			return err
		}
		fmt.Println(code)
		return nil
	},
}

func init() {
	nextCodeCmd.Flags().StringVar(&nextCodeProject, "project", "", "Project id (required)")
	nextCodeCmd.Flags().StringVar(&nextCodePrefix, "prefix", "", "Code prefix, e.g. REQ or WS-SD (required)")
	_ = nextCodeCmd.MarkFlagRequired("project")
	_ = nextCodeCmd.MarkFlagRequired("prefix")
	rootCmd.AddCommand(nextCodeCmd)
}
