package models

import "time"

type StepProgress struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsCurrent   bool   `json:"isCurrent"`
	IsCompleted bool   `json:"isCompleted"`
}

type WorkflowProgressResponse struct {
	ShipmentID  int64          `json:"shipmentId"`
	CurrentStep string         `json:"currentStep"`
	StartedAt   time.Time      `json:"startedAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Steps       []StepProgress `json:"steps"`
}

type AdvanceWorkflowResponse struct {
	ShipmentID  int64  `json:"shipmentId"`
	FromStep    string `json:"fromStep"`
	ToStep      string `json:"toStep"`
	StepName    string `json:"stepName"`
	IsCompleted bool   `json:"isCompleted"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	ShipmentID int64          `json:"shipmentId"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Details    map[string]any `json:"details"`
	ActorID    string         `json:"actorId,omitempty"`
}
