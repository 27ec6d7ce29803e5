package core

import (
	"context"
	"time"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type WorkflowStateRepo interface {
	FindActive(ctx context.Context, shipmentID int64, forUpdate bool) (*domain.WorkflowState, error)
	FindAllByShipmentID(ctx context.Context, shipmentID int64) ([]domain.WorkflowState, error)
	Save(ctx context.Context, ws *domain.WorkflowState) (int64, error)
	Update(ctx context.Context, ws *domain.WorkflowState) error
}

type EventRepo interface {
	Append(ctx context.Context, e *domain.Event) (int64, error)
	FindAllByShipmentID(ctx context.Context, shipmentID int64) ([]domain.Event, error)
	FindRecent(ctx context.Context, limit int) ([]domain.Event, error)
}

type ScheduledJobRepo interface {
	Save(ctx context.Context, job *domain.ScheduledJob) (int64, error)
	FindByID(ctx context.Context, id int64, forUpdate bool) (*domain.ScheduledJob, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error)
	Update(ctx context.Context, job *domain.ScheduledJob) error
	Search(ctx context.Context, filter domain.JobFilter) ([]domain.ScheduledJob, error)
	CountByStatus(ctx context.Context, status domain.JobStatus) (int, error)
}

type ShipmentRepo interface {
	FindByID(ctx context.Context, id int64) (*domain.Shipment, error)
	// LockByID is FindByID holding a row lock until the transaction ends.
	LockByID(ctx context.Context, id int64) (*domain.Shipment, error)
	Save(ctx context.Context, s *domain.Shipment) (int64, error)
	MarkComplete(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	// FindOverdue returns in-progress shipments whose LFD is before day.
	FindOverdue(ctx context.Context, day time.Time) ([]domain.Shipment, error)
	// FindLFDBetween returns in-progress shipments whose LFD falls in [from, to].
	FindLFDBetween(ctx context.Context, from, to time.Time) ([]domain.Shipment, error)
	Stats(ctx context.Context, day time.Time) (domain.ShipmentStats, error)
}

type NotificationRepo interface {
	Save(ctx context.Context, n *domain.Notification) (int64, error)
	FindByShipmentID(ctx context.Context, shipmentID int64) ([]domain.Notification, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Workflows() WorkflowStateRepo
	Events() EventRepo
	Jobs() ScheduledJobRepo
	Shipments() ShipmentRepo
	Notifications() NotificationRepo
}

// Store opens transactions. fn sees repositories bound to the transaction; a
// non-nil return rolls everything back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
