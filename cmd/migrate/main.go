// Command migrate upgrades a database written by the previous dashboard:
// it brings the user table up to the current schema (adding the role
// column) and replaces plaintext passwords with bcrypt hashes.
package main

import (
	"fmt"
	"io"
	"os"

	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/repository/sqlite"
	"crowdwatch/internal/service/users"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the user database schema and stored passwords",
	Long: `Upgrade the user database schema and stored passwords.

The database path defaults to DB_PATH (instance/database.db).

Example:
  migrate
  migrate --db legacy/database.db`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath := cfg.DatabasePath
		if cmd.Flags().Changed("db") {
			dbPath, _ = cmd.Flags().GetString("db")
		}

		log, err := logger.New(cfg.LogDirectory, cfg.LogLevel, io.Discard, os.Stderr)
		if err != nil {
			return err
		}
		defer log.Close()

		fmt.Printf("Migrating %s\n", dbPath)

		// Opening the database applies the schema migration.
		db, err := sqlite.New(dbPath, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		repo := sqlite.NewUserRepository(db)
		upgraded, err := users.NewService(repo, log, true).UpgradeLegacyPasswords(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to upgrade passwords: %w", err)
		}

		total, err := repo.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Schema up to date, %d accounts, %d plaintext passwords upgraded\n", total, upgraded)
		return nil
	},
}

func main() {
	migrateCmd.Flags().String("db", "", "Database path (overrides DB_PATH)")
	if err := migrateCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
