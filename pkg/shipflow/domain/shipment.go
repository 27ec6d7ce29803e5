package domain

import (
	"database/sql"
	"time"
)

const (
	ShipmentStatusInProgress = "in_progress"
	ShipmentStatusComplete   = "complete"

	ShipmentProgressNotShipped = "not_shipped"
	ShipmentProgressDelivered  = "delivered"
)

// Shipment is a master air waybill tracked by a workflow.
type Shipment struct {
	ID          int64           `db:"id"`
	MAWBNumber  string          `db:"mawb_number"`
	OriginPort  sql.NullString  `db:"origin_port"`
	DestPort    sql.NullString  `db:"dest_port"`
	ETA         sql.NullTime    `db:"eta"`
	LFD         sql.NullTime    `db:"lfd"`
	Consignee   sql.NullString  `db:"consignee"`
	Pieces      sql.NullInt64   `db:"pieces"`
	Weight      sql.NullFloat64 `db:"weight"`
	Status      string          `db:"status"`
	Progress    string          `db:"progress"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type ShipmentStats struct {
	Total     int `db:"total"`
	Active    int `db:"active"`
	Completed int `db:"completed"`
	Overdue   int `db:"overdue"`
}
