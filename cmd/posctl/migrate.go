package main

import (
	"database/sql"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down>",
	Short:     "apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "migrations", "directory holding the SQL migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open db for migrations")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "create migrate driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}

	if args[0] == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("Schema already up to date")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "migrate %s", args[0])
	}

	version, dirty, _ := m.Version()
	log.Printf("Schema at version %d (dirty=%v)", version, dirty)
	return nil
}
