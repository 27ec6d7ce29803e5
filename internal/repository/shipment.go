package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const shipmentColumns = "id, mawb_number, origin_port, dest_port, eta, lfd, consignee, pieces, weight, status, progress, created_at, updated_at"

type ShipmentRepository struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func NewShipmentRepository(q sqlx.ExtContext, dialect Dialect) *ShipmentRepository {
	return &ShipmentRepository{q: q, dialect: dialect}
}

// FindByID returns (nil, nil) when the shipment does not exist.
func (r *ShipmentRepository) FindByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	var s domain.Shipment
	err := sqlx.GetContext(ctx, r.q, &s, r.q.Rebind("SELECT "+shipmentColumns+" FROM shipments WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShipmentRepository) LockByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	var s domain.Shipment
	query := "SELECT " + shipmentColumns + " FROM shipments WHERE id = ?" + r.dialect.forUpdate()
	err := sqlx.GetContext(ctx, r.q, &s, r.q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShipmentRepository) Save(ctx context.Context, s *domain.Shipment) (int64, error) {
	var lfd any
	if s.LFD.Valid {
		lfd = r.dialect.dateArg(s.LFD.Time)
	}
	id, err := insert(ctx, r.q, r.dialect,
		`INSERT INTO shipments (mawb_number, origin_port, dest_port, eta, lfd, consignee, pieces, weight, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.MAWBNumber,
		s.OriginPort,
		s.DestPort,
		r.dialect.nullTimeArg(s.ETA.Time, s.ETA.Valid),
		lfd,
		s.Consignee,
		s.Pieces,
		s.Weight,
		s.Status,
		s.Progress,
		r.dialect.timeArg(s.CreatedAt),
		r.dialect.timeArg(s.UpdatedAt),
	)
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

func (r *ShipmentRepository) MarkComplete(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE shipments SET status = ?, progress = ?, updated_at = ? WHERE id = ?`),
		domain.ShipmentStatusComplete,
		domain.ShipmentProgressDelivered,
		r.dialect.timeArg(at),
		id,
	)
	return err
}

// Delete removes the shipment; workflow states, events and jobs go with it.
func (r *ShipmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind("DELETE FROM shipments WHERE id = ?"), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrShipmentNotFound
	}
	return nil
}

func (r *ShipmentRepository) FindOverdue(ctx context.Context, day time.Time) ([]domain.Shipment, error) {
	query := "SELECT " + shipmentColumns + " FROM shipments WHERE status = ? AND lfd IS NOT NULL AND lfd < ? ORDER BY lfd, id"
	var out []domain.Shipment
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query), domain.ShipmentStatusInProgress, r.dialect.dateArg(day))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ShipmentRepository) FindLFDBetween(ctx context.Context, from, to time.Time) ([]domain.Shipment, error) {
	query := "SELECT " + shipmentColumns + " FROM shipments WHERE status = ? AND lfd IS NOT NULL AND lfd >= ? AND lfd <= ? ORDER BY lfd, id"
	var out []domain.Shipment
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query),
		domain.ShipmentStatusInProgress, r.dialect.dateArg(from), r.dialect.dateArg(to))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ShipmentRepository) Stats(ctx context.Context, day time.Time) (domain.ShipmentStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN status = ? AND lfd IS NOT NULL AND lfd < ? THEN 1 ELSE 0 END), 0) AS overdue
		FROM shipments`
	var stats domain.ShipmentStats
	err := sqlx.GetContext(ctx, r.q, &stats, r.q.Rebind(query),
		domain.ShipmentStatusInProgress,
		domain.ShipmentStatusComplete,
		domain.ShipmentStatusInProgress,
		r.dialect.dateArg(day),
	)
	return stats, err
}
