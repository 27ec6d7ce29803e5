package domain

import (
	"database/sql"
	"time"
)

const EventTypeWorkflowAdvanced = "workflow_advanced"

// Event is an append-only audit record of a transition or a reminder firing.
type Event struct {
	ID         int64          `db:"id"`
	ShipmentID int64          `db:"shipment_id"`
	Type       string         `db:"event_type"`
	OccurredAt time.Time      `db:"occurred_at"`
	Details    JSONMap        `db:"details"`
	ActorID    sql.NullString `db:"actor_id"`
}

// JobEventType is the event type recorded when a job of jobType completes.
func JobEventType(jobType string) string {
	return jobType + "_sent"
}
