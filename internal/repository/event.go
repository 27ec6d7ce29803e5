package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const eventColumns = "id, shipment_id, event_type, occurred_at, details, actor_id"

// EventRepository appends to and reads the events table. Rows are never updated.
type EventRepository struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func NewEventRepository(q sqlx.ExtContext, dialect Dialect) *EventRepository {
	return &EventRepository{q: q, dialect: dialect}
}

func (r *EventRepository) Append(ctx context.Context, e *domain.Event) (int64, error) {
	if e.Details == nil {
		e.Details = domain.JSONMap{}
	}
	id, err := insert(ctx, r.q, r.dialect,
		`INSERT INTO events (shipment_id, event_type, occurred_at, details, actor_id) VALUES (?, ?, ?, ?, ?)`,
		e.ShipmentID,
		e.Type,
		r.dialect.timeArg(e.OccurredAt),
		e.Details,
		e.ActorID,
	)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// FindAllByShipmentID returns the events of a shipment oldest first.
func (r *EventRepository) FindAllByShipmentID(ctx context.Context, shipmentID int64) ([]domain.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE shipment_id = ? ORDER BY occurred_at, id"
	var out []domain.Event
	if err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query), shipmentID); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRecent returns the latest events across all shipments, newest first.
func (r *EventRepository) FindRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events ORDER BY occurred_at DESC, id DESC%s", eventColumns, limitOffset(limit, 0))
	var out []domain.Event
	if err := sqlx.SelectContext(ctx, r.q, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
