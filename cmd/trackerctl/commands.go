package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tracker/internal/backend"
	"tracker/internal/calendar"
	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/sheets"
	gsheet "tracker/internal/sheets/google"
	"tracker/internal/storage"
	"tracker/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(storage.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(storage.Down)
	},
}

func runMigrate(dir storage.Direction) error {
	var err error
	switch backend.BackendType(cfg.DataBackend) {
	case backend.SQLiteBackend:
		err = storage.MigrateSQLite(sqlite.DSN(cfg.SQLiteDBPath), dir)
	case backend.PostgresBackend:
		err = storage.MigratePostgres(cfg.DatabaseURL, dir)
	default:
		return fmt.Errorf("backend %q has no migrations", cfg.DataBackend)
	}
	if err != nil {
		return err
	}
	logger.Info("Migrations applied", "backend", cfg.DataBackend, "direction", string(dir))
	return nil
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("TRACKER_PASSWORD")
		}

		return withBackend(cmd.Context(), func(ctx context.Context, b *backend.Backend) error {
			u, err := services.NewUserService(b.Store).Register(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)
			return nil
		})
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, b *backend.Backend) error {
			users, err := services.NewUserService(b.Store).List(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Email, u.CreatedAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a user's month report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		who, _ := cmd.Flags().GetString("user")
		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")
		export, _ := cmd.Flags().GetBool("export")

		today := calendar.DayOf(time.Now(), cfg.Location())
		if year == 0 {
			year = today.Year
		}
		if month == 0 {
			month = today.Month + 1
		}
		if month < 1 || month > 12 {
			return fmt.Errorf("month must be between 1 and 12, got %d", month)
		}

		return withBackend(cmd.Context(), func(ctx context.Context, b *backend.Backend) error {
			userID, err := resolveUser(ctx, b.Store, who)
			if err != nil {
				return err
			}
			tracker := services.NewTrackerService(b.Store, services.WithLocation(cfg.Location()))
			report, err := tracker.MonthReport(ctx, userID, year, month-1)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if !export {
				return nil
			}
			writer, err := reportWriter(ctx)
			if err != nil {
				return err
			}
			ref, err := writer.WriteReport(ctx, report)
			if err != nil {
				return err
			}
			logger.Info("Report exported", "ref", ref)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trackerctl %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// withBackend opens the configured store without cache or events, runs fn
// and closes it.
func withBackend(ctx context.Context, fn func(context.Context, *backend.Backend) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bc.Cache = backend.NoCache
	bc.AMQPURL = ""

	b, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

// resolveUser accepts either a user id or an email address.
func resolveUser(ctx context.Context, store storage.UserStore, who string) (string, error) {
	if strings.Contains(who, "@") {
		u, err := store.GetUserByEmail(ctx, core.NormalizeEmail(who))
		if err != nil {
			return "", fmt.Errorf("look up %s: %w", who, err)
		}
		return u.ID, nil
	}
	if _, err := store.GetUser(ctx, who); err != nil {
		return "", fmt.Errorf("look up %s: %w", who, err)
	}
	return who, nil
}

func reportWriter(ctx context.Context) (sheets.ReportWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("--export needs GOOGLE_SPREADSHEET_ID")
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ReportSheet:        cfg.GoogleReportSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
