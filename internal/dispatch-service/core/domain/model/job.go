package model

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobAssigned   JobStatus = "assigned"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

type TimeWindow string

const (
	WindowMorning   TimeWindow = "MORNING"
	WindowAfternoon TimeWindow = "AFTERNOON"
	WindowEvening   TimeWindow = "EVENING"
	WindowAllDay    TimeWindow = "ALL_DAY"
)

func (w TimeWindow) Valid() bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening, WindowAllDay:
		return true
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type Address struct {
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postal_code"`
	Location   Location `json:"location"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Job struct {
	ID               string
	ServiceType      ServiceType
	Customer         Customer
	Pickup           Address
	ScheduledFor     time.Time
	TimeWindow       TimeWindow
	VolumeTier       VolumeTier
	HelperCount      int
	EstimatedHours   float64
	Notes            string
	PricingSnapshot  Quote
	BilledTotal      Money
	DriverPayout     *Money
	PayoutVersion    string
	PaymentReference string
	Status           JobStatus
	AssignedDriverId *string
	TrackingToken    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string
}

// AssignedTo reports whether driverId currently owns the job.
func (j Job) AssignedTo(driverId string) bool {
	return j.AssignedDriverId != nil && *j.AssignedDriverId == driverId
}

// AvailableJob is one row of the matching query, optionally ranked by distance.
type AvailableJob struct {
	Job        Job
	DistanceKm *float64
}
