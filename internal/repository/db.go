package repository

import (
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/RealZimboGuy/shipflow/internal/migrations"
)

// Open applies the embedded migrations and returns a pool for the dialect.
// For POSTGRES and MYSQL dbURL is required; for SQLLITE sqliteFile is used.
func Open(dialect Dialect, dbURL string, sqliteFile string) (*sqlx.DB, error) {
	switch dialect {
	case DialectPostgres:
		return openPostgres(dbURL)
	case DialectMySQL:
		return openMySQL(dbURL)
	case DialectSQLite:
		return OpenSQLite(sqliteFile)
	}
	return nil, fmt.Errorf("unsupported database type %q", dialect)
}

func openPostgres(dbURL string) (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("SHIPFLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Running migrations", "database", "postgres")
	if err := migrations.Up(migrations.DirPostgres, dbURL); err != nil {
		return nil, err
	}
	slog.Info("Opening Postgres database")
	return sqlx.Connect(DialectPostgres.DriverName(), dbURL)
}

func openMySQL(dbURL string) (*sqlx.DB, error) {
	if !strings.HasPrefix(dbURL, "mysql://") {
		return nil, fmt.Errorf("SHIPFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		return nil, fmt.Errorf("SHIPFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	slog.Info("Running migrations", "database", "mysql")
	if err := migrations.Up(migrations.DirMySQL, dbURL); err != nil {
		return nil, err
	}
	slog.Info("Opening MySQL database")
	return sqlx.Connect(DialectMySQL.DriverName(), strings.TrimPrefix(dbURL, "mysql://"))
}

// OpenSQLite migrates and opens fileName with foreign keys enforced and
// immediate transactions.
func OpenSQLite(fileName string) (*sqlx.DB, error) {
	if fileName == "" {
		return nil, fmt.Errorf("SHIPFLOW_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	slog.Info("Running migrations", "database", "sqlite", "file", fileName)
	if err := migrations.Up(migrations.DirSQLite, "sqlite3://"+fileName); err != nil {
		return nil, err
	}
	dsn := "file:" + fileName + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	return sqlx.Connect(DialectSQLite.DriverName(), dsn)
}
