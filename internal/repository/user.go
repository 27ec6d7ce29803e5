package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const userColumns = "id, username, password, api_key, session_id, session_expiry, enabled, created"

// UserRepository provides persistence methods for the users table.
type UserRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewUserRepository(db *sqlx.DB, dialect Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect}
}

// Save inserts a new user and returns its generated id.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) (int64, error) {
	id, err := insert(ctx, r.db, r.dialect,
		`INSERT INTO users (username, password, api_key, session_id, session_expiry, enabled, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username,
		u.Password,
		u.ApiKey,
		u.SessionID,
		r.dialect.nullTimeArg(u.SessionExpiry.Time, u.SessionExpiry.Valid),
		u.Enabled,
		r.dialect.timeArg(u.Created),
	)
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// FindByUsername fetches a user by exact username. Returns (nil, nil) if not found.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// FindBySessionID returns the enabled user owning a session that has not expired at now.
func (r *UserRepository) FindBySessionID(ctx context.Context, sessionID string, now time.Time) (*domain.User, error) {
	u, err := r.findOne(ctx, "session_id = ?", sessionID)
	if err != nil || u == nil {
		return u, err
	}
	if !u.SessionExpiry.Valid || !u.SessionExpiry.Time.After(now) {
		return nil, nil
	}
	return u, nil
}

func (r *UserRepository) FindByApiKey(ctx context.Context, apiKey string) (*domain.User, error) {
	return r.findOne(ctx, "api_key = ?", apiKey)
}

func (r *UserRepository) UpdateSession(ctx context.Context, userID int64, sessionID string, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE users SET session_id = ?, session_expiry = ? WHERE id = ?"),
		sessionID, r.dialect.timeArg(expiry), userID)
	return err
}

func (r *UserRepository) ClearSessionBySessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE users SET session_id = NULL, session_expiry = NULL WHERE session_id = ?"), sessionID)
	return err
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE "+where+" AND enabled = ?"), arg, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
