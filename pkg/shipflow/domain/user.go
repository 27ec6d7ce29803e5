package domain

import (
	"database/sql"
	"time"
)

type User struct {
	ID            int64          `db:"id"`
	Username      string         `db:"username"`
	Password      string         `db:"password"`
	ApiKey        sql.NullString `db:"api_key"`
	SessionID     sql.NullString `db:"session_id"`
	SessionExpiry sql.NullTime   `db:"session_expiry"`
	Enabled       bool           `db:"enabled"`
	Created       time.Time      `db:"created"`
}
