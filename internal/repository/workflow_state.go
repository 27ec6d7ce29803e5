package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const workflowStateColumns = "id, shipment_id, current_step_code, started_at, updated_at, completed_at, active"

type WorkflowStateRepository struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func NewWorkflowStateRepository(q sqlx.ExtContext, dialect Dialect) *WorkflowStateRepository {
	return &WorkflowStateRepository{q: q, dialect: dialect}
}

// FindActive returns the active workflow of a shipment. With forUpdate the row
// stays locked until the surrounding transaction ends.
func (r *WorkflowStateRepository) FindActive(ctx context.Context, shipmentID int64, forUpdate bool) (*domain.WorkflowState, error) {
	query := "SELECT " + workflowStateColumns + " FROM workflow_states WHERE shipment_id = ? AND active = ?"
	if forUpdate {
		query += r.dialect.forUpdate()
	}
	var ws domain.WorkflowState
	err := sqlx.GetContext(ctx, r.q, &ws, r.q.Rebind(query), shipmentID, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *WorkflowStateRepository) FindAllByShipmentID(ctx context.Context, shipmentID int64) ([]domain.WorkflowState, error) {
	query := "SELECT " + workflowStateColumns + " FROM workflow_states WHERE shipment_id = ? ORDER BY started_at, id"
	var out []domain.WorkflowState
	if err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query), shipmentID); err != nil {
		return nil, err
	}
	return out, nil
}

// Save inserts ws and sets its ID.
func (r *WorkflowStateRepository) Save(ctx context.Context, ws *domain.WorkflowState) (int64, error) {
	id, err := insert(ctx, r.q, r.dialect,
		`INSERT INTO workflow_states (shipment_id, current_step_code, started_at, updated_at, completed_at, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ws.ShipmentID,
		ws.CurrentStepCode,
		r.dialect.timeArg(ws.StartedAt),
		r.dialect.timeArg(ws.UpdatedAt),
		r.dialect.nullTimeArg(ws.CompletedAt.Time, ws.CompletedAt.Valid),
		ws.Active,
	)
	if err != nil {
		return 0, err
	}
	ws.ID = id
	return id, nil
}

func (r *WorkflowStateRepository) Update(ctx context.Context, ws *domain.WorkflowState) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(
		`UPDATE workflow_states SET current_step_code = ?, updated_at = ?, completed_at = ?, active = ? WHERE id = ?`),
		ws.CurrentStepCode,
		r.dialect.timeArg(ws.UpdatedAt),
		r.dialect.nullTimeArg(ws.CompletedAt.Time, ws.CompletedAt.Valid),
		ws.Active,
		ws.ID,
	)
	return err
}
