package model

import (
	"slices"
	"time"
)

type ApprovalStatus string

const (
	DriverPending  ApprovalStatus = "pending"
	DriverApproved ApprovalStatus = "approved"
	DriverBlocked  ApprovalStatus = "blocked"
)

func (s ApprovalStatus) Valid() bool {
	return s == DriverPending || s == DriverApproved || s == DriverBlocked
}

type Vehicle struct {
	Make     string     `json:"make"`
	Model    string     `json:"model"`
	Color    string     `json:"color"`
	Plate    string     `json:"plate"`
	Capacity VolumeTier `json:"capacity,omitempty"`
}

// Driver keeps administrative approval and driver-controlled presence as
// separate fields; neither implies the other.
type Driver struct {
	ID             string
	Name           string
	ApprovalStatus ApprovalStatus
	IsOnline       bool
	Capabilities   []ServiceType
	Vehicle        Vehicle
	Location       *Location
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d Driver) Can(s ServiceType) bool {
	return slices.Contains(d.Capabilities, s)
}

// CanClaim is the eligibility rule shared by claiming and the matching query.
func (d Driver) CanClaim() bool {
	return d.ApprovalStatus == DriverApproved && d.IsOnline
}
