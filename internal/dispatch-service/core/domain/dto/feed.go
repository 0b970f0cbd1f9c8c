package dto

import (
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

// FeedResponse is one page of a channel. Clients send LastEventId back as
// the next since.
type FeedResponse struct {
	Channel     string        `json:"channel"`
	Events      []model.Event `json:"events"`
	LastEventId int64         `json:"lastEventId"`
}

func NewFeedResponse(channel string, since int64, events []model.Event) FeedResponse {
	if events == nil {
		events = []model.Event{}
	}
	last := since
	if n := len(events); n > 0 {
		last = events[n-1].ID
	}
	return FeedResponse{Channel: channel, Events: events, LastEventId: last}
}

type JobUpdatePayload struct {
	JobID            string          `json:"job_id"`
	Status           model.JobStatus `json:"status"`
	PreviousStatus   model.JobStatus `json:"previous_status,omitempty"`
	AssignedDriverId *string         `json:"assigned_driver_id"`
	Reason           string          `json:"reason,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type JobTakenPayload struct {
	JobID string `json:"job_id"`
}

type LocationPayload struct {
	JobID    string    `json:"job_id"`
	DriverID string    `json:"driver_id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}

type PaymentFailedPayload struct {
	PaymentReference string `json:"payment_reference"`
	Reason           string `json:"reason,omitempty"`
}
