package dto

import (
	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

type SystemOverview struct {
	Timestamp string        `json:"timestamp"`
	Jobs      JobMetrics    `json:"jobs"`
	Drivers   DriverMetrics `json:"drivers"`
	Today     TodayMetrics  `json:"today"`
}

type JobMetrics struct {
	Pending           int `json:"pending"`
	Assigned          int `json:"assigned"`
	InProgress        int `json:"in_progress"`
	Completed         int `json:"completed"`
	Cancelled         int `json:"cancelled"`
	PendingExtensions int `json:"pending_extensions"`
}

type DriverMetrics struct {
	Online           int `json:"online"`
	Busy             int `json:"busy"`
	PendingApprovals int `json:"pending_approvals"`
}

type TodayMetrics struct {
	Created          int         `json:"created"`
	Completed        int         `json:"completed"`
	Cancelled        int         `json:"cancelled"`
	CancellationRate float64     `json:"cancellation_rate"`
	Revenue          model.Money `json:"revenue"`
	Payouts          model.Money `json:"payouts"`
}

type ActiveJobs struct {
	Jobs       []JobResponse `json:"jobs"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}
