package domain

import (
	"database/sql"
	"time"
)

type WorkflowState struct {
	ID              int64        `db:"id"`
	ShipmentID      int64        `db:"shipment_id"`
	CurrentStepCode string       `db:"current_step_code"`
	StartedAt       time.Time    `db:"started_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
	CompletedAt     sql.NullTime `db:"completed_at"`
	Active          bool         `db:"active"`
}

func (w *WorkflowState) IsCompleted() bool {
	return w.CompletedAt.Valid
}
