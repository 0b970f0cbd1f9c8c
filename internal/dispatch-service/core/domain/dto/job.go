package dto

import (
	"strings"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
)

const maxNotesLen = 2000

type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// CreateJobRequest is a booking. The quote input is priced again server side;
// whatever total the client saw is never trusted.
type CreateJobRequest struct {
	Quote            model.QuoteInput `json:"quote"`
	Customer         CustomerInfo     `json:"customer"`
	Pickup           model.Address    `json:"pickup"`
	ScheduledFor     *time.Time       `json:"scheduled_for"`
	TimeWindow       model.TimeWindow `json:"time_window"`
	Notes            string           `json:"notes,omitempty"`
	PaymentReference string           `json:"payment_reference,omitempty"`
}

func (r CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.Customer.Name) == "" {
		return myerrors.NewValidation("customer.name", "required")
	}
	if strings.TrimSpace(r.Customer.Phone) == "" && strings.TrimSpace(r.Customer.Email) == "" {
		return myerrors.NewValidation("customer", "phone or email is required")
	}
	if r.Customer.Email != "" && !strings.Contains(r.Customer.Email, "@") {
		return myerrors.NewValidation("customer.email", "malformed")
	}
	if err := ValidateAddress(r.Pickup); err != nil {
		return err
	}
	if r.ScheduledFor == nil || r.ScheduledFor.IsZero() {
		return myerrors.NewValidation("scheduled_for", "required")
	}
	if !r.TimeWindow.Valid() {
		return myerrors.NewValidation("time_window", "must be one of MORNING, AFTERNOON, EVENING, ALL_DAY")
	}
	if len(r.Notes) > maxNotesLen {
		return myerrors.NewValidation("notes", "too long")
	}
	return nil
}

func ValidateAddress(a model.Address) error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return myerrors.NewValidation("pickup.line1", "required")
	case strings.TrimSpace(a.City) == "":
		return myerrors.NewValidation("pickup.city", "required")
	case strings.TrimSpace(a.State) == "":
		return myerrors.NewValidation("pickup.state", "required")
	case strings.TrimSpace(a.PostalCode) == "":
		return myerrors.NewValidation("pickup.postal_code", "required")
	}
	return ValidateLocation("pickup.location", a.Location)
}

func ValidateLocation(field string, l model.Location) error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return myerrors.NewValidation(field+".lat", "must be in range [-90, 90]")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return myerrors.NewValidation(field+".lng", "must be in range [-180, 180]")
	}
	return nil
}

type CreateJobResponse struct {
	JobID         string          `json:"job_id"`
	TrackingToken string          `json:"tracking_token"`
	Status        model.JobStatus `json:"status"`
	Quote         model.Quote     `json:"quote"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type JobResponse struct {
	JobID            string            `json:"job_id"`
	ServiceType      model.ServiceType `json:"service_type"`
	Status           model.JobStatus   `json:"status"`
	Customer         model.Customer    `json:"customer"`
	Pickup           model.Address     `json:"pickup"`
	ScheduledFor     time.Time         `json:"scheduled_for"`
	TimeWindow       model.TimeWindow  `json:"time_window"`
	VolumeTier       model.VolumeTier  `json:"volume_tier,omitempty"`
	HelperCount      int               `json:"helper_count,omitempty"`
	EstimatedHours   float64           `json:"estimated_hours,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	PricingSnapshot  model.Quote       `json:"pricing_snapshot"`
	BilledTotal      model.Money       `json:"billed_total"`
	DriverPayout     *model.Money      `json:"driver_payout,omitempty"`
	AssignedDriverId *string           `json:"assigned_driver_id"`
	TrackingToken    string            `json:"tracking_token"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason     string            `json:"cancel_reason,omitempty"`
}

func NewJobResponse(j model.Job) JobResponse {
	return JobResponse{
		JobID:            j.ID,
		ServiceType:      j.ServiceType,
		Status:           j.Status,
		Customer:         j.Customer,
		Pickup:           j.Pickup,
		ScheduledFor:     j.ScheduledFor,
		TimeWindow:       j.TimeWindow,
		VolumeTier:       j.VolumeTier,
		HelperCount:      j.HelperCount,
		EstimatedHours:   j.EstimatedHours,
		Notes:            j.Notes,
		PricingSnapshot:  j.PricingSnapshot,
		BilledTotal:      j.BilledTotal,
		DriverPayout:     j.DriverPayout,
		AssignedDriverId: j.AssignedDriverId,
		TrackingToken:    j.TrackingToken,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		CompletedAt:      j.CompletedAt,
		CancelledAt:      j.CancelledAt,
		CancelReason:     j.CancelReason,
	}
}

// AvailableJob is what a driver sees before claiming: no customer contact.
type AvailableJob struct {
	JobID          string            `json:"job_id"`
	ServiceType    model.ServiceType `json:"service_type"`
	Pickup         model.Address     `json:"pickup"`
	ScheduledFor   time.Time         `json:"scheduled_for"`
	TimeWindow     model.TimeWindow  `json:"time_window"`
	VolumeTier     model.VolumeTier  `json:"volume_tier,omitempty"`
	HelperCount    int               `json:"helper_count,omitempty"`
	EstimatedHours float64           `json:"estimated_hours,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Total          model.Money       `json:"total"`
	DistanceKm     *float64          `json:"distance_km,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func NewAvailableJob(j model.Job, distanceKm *float64) AvailableJob {
	return AvailableJob{
		JobID:          j.ID,
		ServiceType:    j.ServiceType,
		Pickup:         j.Pickup,
		ScheduledFor:   j.ScheduledFor,
		TimeWindow:     j.TimeWindow,
		VolumeTier:     j.VolumeTier,
		HelperCount:    j.HelperCount,
		EstimatedHours: j.EstimatedHours,
		Notes:          j.Notes,
		Total:          j.BilledTotal,
		DistanceKm:     distanceKm,
		CreatedAt:      j.CreatedAt,
	}
}

type AvailableJobsResponse struct {
	Jobs []AvailableJob `json:"jobs"`
}
