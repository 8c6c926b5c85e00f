// tracefit is the traceability and fit-status consolidation service.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracefit/tracefit/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgPath  string
	dbPath   string
	logLevel string
	actor    string
)

var rootCmd = &cobra.Command{
	Use:   "tracefit",
	Short: "Traceability and fit-status consolidation engine",
	Long: `tracefit traces entity chains from requirement to defect, detects
missing links, and drives fit-status consolidation, sign-off and
confirmation over the 4-level process hierarchy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("tracefit version %s\n", Version)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: $HOME/.tracefit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for the audit trail (default: $TRACEFIT_ACTOR, $USER)")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	viper.SetEnvPrefix("TRACEFIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

// loadConfig layers flags and environment over the config file.
func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + "/.tracefit/config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db := viper.GetString("db"); db != "" {
		cfg.Storage.Path = db
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "tracefit",
	})
	if cfg.Log.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	switch cfg.Log.Level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// currentActor resolves the audit actor: flag, then env, then OS user.
func currentActor() string {
	if actor != "" {
		return actor
	}
	if a := viper.GetString("actor"); a != "" {
		return a
	}
	return os.Getenv("USER")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
