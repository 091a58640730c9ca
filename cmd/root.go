package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// logger is built in PersistentPreRunE, after .env has been loaded.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "face-registry",
	Short: "A registry of named face descriptors",
	Long: `Face Registry stores face descriptors computed in the browser (face-api.js)
under a person's name, serves the registration front-end and matches new
descriptors against everyone registered.

Records are kept in a JSON file by default; PostgreSQL, MariaDB, Redis and S3
are available through STORAGE_BACKEND.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
}

func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (overrides LOG_FORMAT)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func initLogger(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	level, format := cfg.Log.Level, cfg.Log.Format
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		format = v
	}

	l, err := logging.New(level, format)
	if err != nil {
		return err
	}
	logger = l
	return nil
}
