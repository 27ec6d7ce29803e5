package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// NotificationRepository records rendered notifications. Delivery is left to
// whatever reads notification_log.
type NotificationRepository struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func NewNotificationRepository(q sqlx.ExtContext, dialect Dialect) *NotificationRepository {
	return &NotificationRepository{q: q, dialect: dialect}
}

func (r *NotificationRepository) Save(ctx context.Context, n *domain.Notification) (int64, error) {
	id, err := insert(ctx, r.q, r.dialect,
		`INSERT INTO notification_log (shipment_id, template_name, recipients, subject, body, sent_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ShipmentID, n.TemplateName, n.Recipients, n.Subject, n.Body, n.SentBy, r.dialect.timeArg(n.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

func (r *NotificationRepository) FindByShipmentID(ctx context.Context, shipmentID int64) ([]domain.Notification, error) {
	query := `SELECT id, shipment_id, template_name, recipients, subject, body, sent_by, created_at
		FROM notification_log WHERE shipment_id = ? ORDER BY created_at, id`
	var out []domain.Notification
	if err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query), shipmentID); err != nil {
		return nil, err
	}
	return out, nil
}
