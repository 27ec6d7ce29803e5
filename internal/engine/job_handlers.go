package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// JobHandler executes one job inside the job's transaction. The returned map
// is merged into the completion event's details.
type JobHandler func(ctx context.Context, tx core.Repositories, job *domain.ScheduledJob) (domain.JSONMap, error)

func DefaultJobHandlers() map[string]JobHandler {
	return map[string]JobHandler{
		domain.JobTypePickupReminder:      reminderHandler("pickup reminder", nil),
		domain.JobTypeLFDReminder:         reminderHandler("LFD reminder", lfdDetails),
		domain.JobTypeISCReminder:         reminderHandler("ISC payment reminder", nil),
		domain.JobTypeEmptyReturnReminder: reminderHandler("empty container return reminder", nil),
	}
}

// reminderHandler logs the reminder for the job's shipment. Delivery of the
// message itself belongs to the outbound mail collaborator.
func reminderHandler(label string, extra func(s *domain.Shipment) domain.JSONMap) JobHandler {
	return func(ctx context.Context, tx core.Repositories, job *domain.ScheduledJob) (domain.JSONMap, error) {
		shipment, err := tx.Shipments().FindByID(ctx, job.ShipmentID)
		if err != nil {
			return nil, err
		}
		if shipment == nil {
			return nil, fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, job.ShipmentID)
		}
		slog.InfoContext(ctx, "Sending "+label, "mawb", shipment.MAWBNumber, "shipmentId", shipment.ID,
			"reminder", job.Payload.String(domain.PayloadReminderType))
		if extra == nil {
			return nil, nil
		}
		return extra(shipment), nil
	}
}

func lfdDetails(s *domain.Shipment) domain.JSONMap {
	if !s.LFD.Valid {
		return domain.JSONMap{"lfd_date": nil}
	}
	return domain.JSONMap{"lfd_date": s.LFD.Time.Format("2006-01-02")}
}
