package domain

import (
	"database/sql"
	"time"
)

type Notification struct {
	ID           int64          `db:"id"`
	ShipmentID   int64          `db:"shipment_id"`
	TemplateName string         `db:"template_name"`
	Recipients   string         `db:"recipients"`
	Subject      string         `db:"subject"`
	Body         string         `db:"body"`
	SentBy       sql.NullString `db:"sent_by"`
	CreatedAt    time.Time      `db:"created_at"`
}
