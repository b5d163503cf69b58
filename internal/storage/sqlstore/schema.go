package sqlstore

import (
	"fmt"
	"io/fs"

	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/migration"
	"github.com/julianstephens/platewise/migrations"
)

func (d Dialect) driver() migration.Driver {
	if d == Postgres {
		return migration.DriverPostgres
	}
	return migration.DriverSQLite
}

// Runner returns a migration runner over the embedded files for the store's
// dialect.
func (s *Store) Runner() (*migration.Runner, error) {
	db, err := s.conn("migrate")
	if err != nil {
		return nil, err
	}
	driver := s.dialect.driver()
	sub, err := fs.Sub(migrations.FS, string(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to access %s migrations: %w", driver, err)
	}
	return migration.NewRunner(db, sub, driver), nil
}

// Migrate applies pending migrations, reporting progress to logFn.
func (s *Store) Migrate(logFn func(string)) (int, error) {
	runner, err := s.Runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

// ApplySchema migrates quietly, logging only when something was applied.
func (s *Store) ApplySchema(keyvals ...any) error {
	applied, err := s.Migrate(nil)
	if applied > 0 {
		logger.Info("Applied migrations", append([]any{"count", applied}, keyvals...)...)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ValidateSchema fails when the database is ahead of this build.
func (s *Store) ValidateSchema() error {
	runner, err := s.Runner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}
