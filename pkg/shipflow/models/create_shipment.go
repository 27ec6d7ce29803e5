package models

import "time"

type CreateShipmentRequest struct {
	MAWBNumber string     `json:"mawbNumber"`
	OriginPort string     `json:"originPort"`
	DestPort   string     `json:"destPort"`
	ETA        *time.Time `json:"eta,omitempty"`
	// LFD is the last free day as YYYY-MM-DD.
	LFD         string   `json:"lfd,omitempty"`
	Consignee   string   `json:"consignee"`
	Pieces      *int64   `json:"pieces,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	InitialStep string   `json:"initialStep,omitempty"`
}

type CreateShipmentResponse struct {
	ID          int64  `json:"id"`
	CurrentStep string `json:"currentStep"`
}

type ShipmentResponse struct {
	ID         int64      `json:"id"`
	MAWBNumber string     `json:"mawbNumber"`
	OriginPort string     `json:"originPort,omitempty"`
	DestPort   string     `json:"destPort,omitempty"`
	ETA        *time.Time `json:"eta,omitempty"`
	LFD        string     `json:"lfd,omitempty"`
	Consignee  string     `json:"consignee,omitempty"`
	Pieces     int64      `json:"pieces"`
	Weight     float64    `json:"weight"`
	Status     string     `json:"status"`
	Progress   string     `json:"progress"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
