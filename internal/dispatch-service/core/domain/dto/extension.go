package dto

import (
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

type TimeExtensionRequest struct {
	AdditionalHours float64 `json:"additional_hours"`
}

type TimeExtensionResponse struct {
	ExtensionID     string                `json:"extension_id"`
	JobID           string                `json:"job_id"`
	DriverID        string                `json:"driver_id"`
	AdditionalHours float64               `json:"additional_hours"`
	AdditionalCost  model.Money           `json:"additional_cost"`
	Status          model.ExtensionStatus `json:"status"`
	BilledTotal     model.Money           `json:"billed_total"`
	CreatedAt       time.Time             `json:"created_at"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
}

func NewTimeExtensionResponse(e model.TimeExtension, billedTotal model.Money) TimeExtensionResponse {
	return TimeExtensionResponse{
		ExtensionID:     e.ID,
		JobID:           e.JobID,
		DriverID:        e.DriverID,
		AdditionalHours: e.AdditionalHours,
		AdditionalCost:  e.AdditionalCost,
		Status:          e.Status,
		BilledTotal:     billedTotal,
		CreatedAt:       e.CreatedAt,
		ResolvedAt:      e.ResolvedAt,
	}
}
