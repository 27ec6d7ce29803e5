package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// StepDefinitionRepository mirrors the in-memory catalog into step_definitions
// so reports can join on step codes. The catalog stays the source of truth.
type StepDefinitionRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewStepDefinitionRepository(db *sqlx.DB, dialect Dialect) *StepDefinitionRepository {
	return &StepDefinitionRepository{db: db, dialect: dialect}
}

// Sync inserts or updates every step and stores its table position.
func (r *StepDefinitionRepository) Sync(ctx context.Context, steps []domain.StepDefinition, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, s := range steps {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind("SELECT COUNT(*) FROM step_definitions WHERE code = ?"), s.Code); err != nil {
			return err
		}
		if n == 0 {
			_, err = tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO step_definitions (code, name, description, next_code, position, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
				s.Code, s.Name, s.Description, s.NextCode, i, r.dialect.timeArg(now))
		} else {
			_, err = tx.ExecContext(ctx, tx.Rebind(
				`UPDATE step_definitions SET name = ?, description = ?, next_code = ?, position = ?, updated_at = ? WHERE code = ?`),
				s.Name, s.Description, s.NextCode, i, r.dialect.timeArg(now), s.Code)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *StepDefinitionRepository) FindAll(ctx context.Context) ([]domain.StepDefinitionRow, error) {
	var out []domain.StepDefinitionRow
	err := r.db.SelectContext(ctx, &out,
		"SELECT code, name, description, next_code, position, updated_at FROM step_definitions ORDER BY position")
	return out, err
}
