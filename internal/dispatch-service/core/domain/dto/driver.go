package dto

import (
	"slices"
	"strings"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
)

type RegisterDriverRequest struct {
	DriverID     string              `json:"driver_id,omitempty"`
	Name         string              `json:"name"`
	Capabilities []model.ServiceType `json:"capabilities"`
	Vehicle      model.Vehicle       `json:"vehicle"`
}

func (r RegisterDriverRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return myerrors.NewValidation("name", "required")
	}
	if len(r.Capabilities) == 0 {
		return myerrors.NewValidation("capabilities", "at least one service type is required")
	}
	for i, c := range r.Capabilities {
		if !c.Valid() {
			return myerrors.NewValidation("capabilities", "unknown service type "+string(c))
		}
		if slices.Contains(r.Capabilities[:i], c) {
			return myerrors.NewValidation("capabilities", "duplicate service type "+string(c))
		}
	}
	if strings.TrimSpace(r.Vehicle.Plate) == "" {
		return myerrors.NewValidation("vehicle.plate", "required")
	}
	return nil
}

type ApprovalRequest struct {
	Status model.ApprovalStatus `json:"status"`
}

type PresenceRequest struct {
	Location *model.Location `json:"location,omitempty"`
}

type LocationRequest struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
}

func (r LocationRequest) Location() (model.Location, error) {
	if r.Latitude == nil || r.Longitude == nil {
		return model.Location{}, myerrors.NewValidation("location", "lat and lng are required")
	}
	loc := model.Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
	return loc, ValidateLocation("location", loc)
}

type DriverResponse struct {
	DriverID       string               `json:"driver_id"`
	Name           string               `json:"name"`
	ApprovalStatus model.ApprovalStatus `json:"approval_status"`
	IsOnline       bool                 `json:"is_online"`
	Capabilities   []model.ServiceType  `json:"capabilities"`
	Vehicle        model.Vehicle        `json:"vehicle"`
	Location       *model.Location      `json:"location,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func NewDriverResponse(d model.Driver) DriverResponse {
	return DriverResponse{
		DriverID:       d.ID,
		Name:           d.Name,
		ApprovalStatus: d.ApprovalStatus,
		IsOnline:       d.IsOnline,
		Capabilities:   d.Capabilities,
		Vehicle:        d.Vehicle,
		Location:       d.Location,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
