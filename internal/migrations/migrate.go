package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DirPostgres = "postgres"
	DirMySQL    = "mysql"
	DirSQLite   = "sqlite"
)

// Up applies the embedded migrations in dir against dbURL. dbURL carries the
// migrate scheme (postgres://, mysql://, sqlite3://).
func Up(dir string, dbURL string) error {
	sub, err := fs.Sub(FS, dir)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", dir, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("Closing migrator failed", "sourceError", srcErr, "dbError", dbErr)
		}
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations %s: %w", dir, err)
	}
	return nil
}
