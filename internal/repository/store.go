package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
)

// Store hands out repositories bound either to the pool or to a transaction.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewStore(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Workflows() core.WorkflowStateRepo {
	return NewWorkflowStateRepository(s.db, s.dialect)
}

func (s *Store) Events() core.EventRepo {
	return NewEventRepository(s.db, s.dialect)
}

func (s *Store) Jobs() core.ScheduledJobRepo {
	return NewScheduledJobRepository(s.db, s.dialect)
}

func (s *Store) Shipments() core.ShipmentRepo {
	return NewShipmentRepository(s.db, s.dialect)
}

func (s *Store) Notifications() core.NotificationRepo {
	return NewNotificationRepository(s.db, s.dialect)
}

// WithinTx runs fn in a single transaction and commits when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, txRepositories{tx: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txRepositories struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (t txRepositories) Workflows() core.WorkflowStateRepo {
	return NewWorkflowStateRepository(t.tx, t.dialect)
}

func (t txRepositories) Events() core.EventRepo {
	return NewEventRepository(t.tx, t.dialect)
}

func (t txRepositories) Jobs() core.ScheduledJobRepo {
	return NewScheduledJobRepository(t.tx, t.dialect)
}

func (t txRepositories) Shipments() core.ShipmentRepo {
	return NewShipmentRepository(t.tx, t.dialect)
}

func (t txRepositories) Notifications() core.NotificationRepo {
	return NewNotificationRepository(t.tx, t.dialect)
}
