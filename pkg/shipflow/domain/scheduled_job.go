package domain

import "time"

type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
	JobStatusFailedPermanent JobStatus = "failed_permanent"
)

const (
	JobTypePickupReminder      = "pickup_reminder"
	JobTypeLFDReminder         = "lfd_reminder"
	JobTypeISCReminder         = "isc_reminder"
	JobTypeEmptyReturnReminder = "empty_return_reminder"
)

const DefaultMaxAttempts = 3

// PayloadReminderType is the payload key naming which reminder a job carries.
const PayloadReminderType = "reminder_type"

type ScheduledJob struct {
	ID          int64     `db:"id"`
	ShipmentID  int64     `db:"shipment_id"`
	JobType     string    `db:"job_type"`
	RunAt       time.Time `db:"run_at"`
	Status      JobStatus `db:"status"`
	Attempts    int       `db:"attempts"`
	MaxAttempts int       `db:"max_attempts"`
	Payload     JSONMap   `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// CanRetry reports whether an operator may put the job back to pending.
func (j *ScheduledJob) CanRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// IsDue reports whether the scheduler should pick the job up at now.
func (j *ScheduledJob) IsDue(now time.Time) bool {
	if j.Status != JobStatusPending && j.Status != JobStatusFailed {
		return false
	}
	return !j.RunAt.After(now)
}

type JobFilter struct {
	Status     JobStatus
	JobType    string
	ShipmentID int64
	Limit      int
	Offset     int
}
