package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tracefit/tracefit/internal/fit"
	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/seq"
	"github.com/tracefit/tracefit/internal/server"
	"github.com/tracefit/tracefit/internal/storage/sqlite"
	"github.com/tracefit/tracefit/internal/telemetry"
	"github.com/tracefit/tracefit/internal/trace"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := telemetry.Init(ctx, "tracefit", Version); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			telemetry.Shutdown(shutdownCtx)
		}()

		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		reg := schema.New(store)
		tracer := trace.New(reg, store, logger)
		fits := fit.New(store, logger)
		codes := seq.New(store)
		srv := server.New(cfg.Server, store, tracer, fits, codes, logger)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(ctx) })

		logger.Info("serving", "db", cfg.Storage.Path)
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
