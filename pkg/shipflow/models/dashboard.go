package models

type DashboardStats struct {
	TotalShipments     int             `json:"totalShipments"`
	ActiveShipments    int             `json:"activeShipments"`
	CompletedShipments int             `json:"completedShipments"`
	OverdueShipments   int             `json:"overdueShipments"`
	PendingJobs        int             `json:"pendingJobs"`
	FailedJobs         int             `json:"failedJobs"`
	RecentEvents       []EventResponse `json:"recentEvents"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
