package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/internal/config"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect string

const (
	DialectPostgres Dialect = config.DATABASE_TYPE_POSTGRES
	DialectMySQL    Dialect = config.DATABASE_TYPE_MYSQL
	DialectSQLite   Dialect = config.DATABASE_TYPE_SQLLITE
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000"
const dateLayout = "2006-01-02"

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(s); d {
	case DialectPostgres, DialectMySQL, DialectSQLite:
		return d, nil
	}
	return "", fmt.Errorf("unsupported database type %q: use POSTGRES, MYSQL or SQLLITE", s)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

func (d Dialect) supportsReturning() bool {
	return d == DialectPostgres
}

// forUpdate locks selected rows. SQLite has no row locks; its transactions
// are opened with _txlock=immediate so writers serialize at BEGIN.
func (d Dialect) forUpdate() string {
	if d == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// timeArg normalises a timestamp before it is bound. SQLite gets a fixed-width
// UTC string so that julianday() and ordering behave.
func (d Dialect) timeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (d Dialect) nullTimeArg(t time.Time, valid bool) any {
	if !valid {
		return nil
	}
	return d.timeArg(t)
}

// dateArg binds the calendar date of t, ignoring its clock time.
func (d Dialect) dateArg(t time.Time) string {
	return t.Format(dateLayout)
}

// timeAtOrBefore returns a predicate comparing column with one bound timestamp.
func (d Dialect) timeAtOrBefore(column string) string {
	if d == DialectSQLite {
		return fmt.Sprintf("julianday(%s) <= julianday(?)", column)
	}
	return column + " <= ?"
}

func limitOffset(limit, offset int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return ""
}

// insert runs an INSERT and returns the generated id.
func insert(ctx context.Context, q sqlx.ExtContext, d Dialect, query string, args ...any) (int64, error) {
	query = q.Rebind(query)
	if d.supportsReturning() {
		var id int64
		if err := q.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
