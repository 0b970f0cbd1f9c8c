package model

import "time"

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionDeclined ExtensionStatus = "declined"
)

// TimeExtension is a driver's request to bill extra hours on a LABOR_ONLY job.
type TimeExtension struct {
	ID              string
	JobID           string
	DriverID        string
	AdditionalHours float64
	AdditionalCost  Money
	Status          ExtensionStatus
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}
