package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/afterword/backend/internal/config"
	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/migrations"
	"github.com/spf13/cobra"
)

var databaseURL string

func withMigrator(fn func(m *repository.Migrator) error) error {
	if databaseURL == config.MemoryDatabase {
		return fmt.Errorf("DATABASE_URL=%s has no schema to migrate", config.MemoryDatabase)
	}
	m, err := repository.NewMigrator(slog.Default(), databaseURL, migrations.FS)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply or roll back the database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel)
		if databaseURL == "" {
			databaseURL = cfg.DatabaseURL
		}
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *repository.Migrator) error { return m.Up() })
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration (drops all tables)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *repository.Migrator) error { return m.Down() })
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *repository.Migrator) error {
			ver, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", ver, dirty)
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrator(func(m *repository.Migrator) error { return m.Force(version) })
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)

	if err := rootCmd.Execute(); err != nil {
		logging.Fatal("migrate failed", "error", err)
	}
}
