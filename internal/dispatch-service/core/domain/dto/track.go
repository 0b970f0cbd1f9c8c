package dto

import (
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

type TrackRequest struct {
	TrackingToken string `json:"tracking_token"`
	JobID         string `json:"job_id"`
}

// TrackResponse is the anonymous view of a job. It never carries contact data.
type TrackResponse struct {
	JobID          string            `json:"job_id"`
	Status         model.JobStatus   `json:"status"`
	ServiceType    model.ServiceType `json:"service_type"`
	ScheduledFor   time.Time         `json:"scheduled_for"`
	TimeWindow     model.TimeWindow  `json:"time_window"`
	City           string            `json:"city"`
	Total          model.Money       `json:"total"`
	BilledTotal    model.Money       `json:"billed_total"`
	DriverAssigned bool              `json:"driver_assigned"`
	DriverName     string            `json:"driver_name,omitempty"`
	Vehicle        *model.Vehicle    `json:"vehicle,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}
