// trackerctl runs maintenance tasks against the tracker database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/log"
)

var (
	version  = "dev"
	logLevel string

	cfg    *config.Config
	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "trackerctl",
	Short:         "Maintenance commands for the habit and task tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		level := logLevel
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		logger = cli.SetupLogger(level)

		cfg = config.Load()
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	userCmd.AddCommand(userCreateCmd, userListCmd)
	rootCmd.AddCommand(migrateCmd, userCmd, reportCmd, versionCmd)

	userCreateCmd.Flags().String("email", "", "account email")
	userCreateCmd.Flags().String("password", "", "account password (or TRACKER_PASSWORD)")
	_ = userCreateCmd.MarkFlagRequired("email")

	reportCmd.Flags().String("user", "", "user id or email")
	reportCmd.Flags().Int("year", 0, "year (default: current)")
	reportCmd.Flags().Int("month", 0, "month 1-12 (default: current)")
	reportCmd.Flags().Bool("export", false, "also write the report to the configured spreadsheet")
	_ = reportCmd.MarkFlagRequired("user")
}
