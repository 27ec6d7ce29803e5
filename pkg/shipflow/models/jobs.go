package models

import "time"

type JobResponse struct {
	ID          int64          `json:"id"`
	ShipmentID  int64          `json:"shipmentId"`
	JobType     string         `json:"jobType"`
	RunAt       time.Time      `json:"runAt"`
	Status      string         `json:"status"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"maxAttempts"`
	Payload     map[string]any `json:"payload"`
	CanRetry    bool           `json:"canRetry"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type SearchJobsResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
