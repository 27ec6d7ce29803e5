package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const jobColumns = "id, shipment_id, job_type, run_at, status, attempts, max_attempts, payload, created_at, updated_at"

type ScheduledJobRepository struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func NewScheduledJobRepository(q sqlx.ExtContext, dialect Dialect) *ScheduledJobRepository {
	return &ScheduledJobRepository{q: q, dialect: dialect}
}

func (r *ScheduledJobRepository) Save(ctx context.Context, job *domain.ScheduledJob) (int64, error) {
	if job.Payload == nil {
		job.Payload = domain.JSONMap{}
	}
	id, err := insert(ctx, r.q, r.dialect,
		`INSERT INTO scheduled_jobs (shipment_id, job_type, run_at, status, attempts, max_attempts, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ShipmentID,
		job.JobType,
		r.dialect.timeArg(job.RunAt),
		string(job.Status),
		job.Attempts,
		job.MaxAttempts,
		job.Payload,
		r.dialect.timeArg(job.CreatedAt),
		r.dialect.timeArg(job.UpdatedAt),
	)
	if err != nil {
		return 0, err
	}
	job.ID = id
	return id, nil
}

// FindByID returns (nil, nil) when the job does not exist.
func (r *ScheduledJobRepository) FindByID(ctx context.Context, id int64, forUpdate bool) (*domain.ScheduledJob, error) {
	query := "SELECT " + jobColumns + " FROM scheduled_jobs WHERE id = ?"
	if forUpdate {
		query += r.dialect.forUpdate()
	}
	var job domain.ScheduledJob
	err := sqlx.GetContext(ctx, r.q, &job, r.q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindDue returns pending jobs, and failed jobs waiting for another attempt,
// whose run_at is not after now. Oldest first.
func (r *ScheduledJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	query := "SELECT " + jobColumns + " FROM scheduled_jobs WHERE status IN (?, ?) AND " +
		r.dialect.timeAtOrBefore("run_at") + " ORDER BY run_at, id" + limitOffset(limit, 0)
	var out []domain.ScheduledJob
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query),
		string(domain.JobStatusPending),
		string(domain.JobStatusFailed),
		r.dialect.timeArg(now),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable columns: status, attempts, run_at and updated_at.
func (r *ScheduledJobRepository) Update(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(
		`UPDATE scheduled_jobs SET status = ?, attempts = ?, run_at = ?, updated_at = ? WHERE id = ?`),
		string(job.Status),
		job.Attempts,
		r.dialect.timeArg(job.RunAt),
		r.dialect.timeArg(job.UpdatedAt),
		job.ID,
	)
	return err
}

// Search lists jobs newest run_at first.
func (r *ScheduledJobRepository) Search(ctx context.Context, filter domain.JobFilter) ([]domain.ScheduledJob, error) {
	where, args := buildJobWhereClause(filter)
	query := "SELECT " + jobColumns + " FROM scheduled_jobs" + where +
		" ORDER BY run_at DESC, id DESC" + limitOffset(filter.Limit, filter.Offset)
	var out []domain.ScheduledJob
	if err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScheduledJobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind("SELECT COUNT(*) FROM scheduled_jobs WHERE status = ?"), string(status))
	return n, err
}

func buildJobWhereClause(filter domain.JobFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, "status = ?")
	}
	if filter.JobType != "" {
		args = append(args, filter.JobType)
		clauses = append(clauses, "job_type = ?")
	}
	if filter.ShipmentID != 0 {
		args = append(args, filter.ShipmentID)
		clauses = append(clauses, "shipment_id = ?")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return fmt.Sprintf(" WHERE %s", strings.Join(clauses, " AND ")), args
}
