package messagebrokerdto

import (
	"encoding/json"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

const (
	PaymentPaid   = "paid"
	PaymentFailed = "failed"
)

// PaymentResult ← payment_topic exchange ← payment.{status}
type PaymentResult struct {
	Status           string               `json:"status"`
	PaymentReference string               `json:"payment_reference"`
	CustomerID       string               `json:"customer_id"`
	Reason           string               `json:"reason,omitempty"`
	Booking          dto.CreateJobRequest `json:"booking"`
}

// PayoutFinalize → dispatch_topic exchange → payout.finalize
type PayoutFinalize struct {
	JobID         string      `json:"job_id"`
	DriverID      string      `json:"driver_id"`
	BilledTotal   model.Money `json:"billed_total"`
	DriverPayout  model.Money `json:"driver_payout"`
	PayoutPercent int         `json:"payout_percent"`
	PayoutVersion string      `json:"payout_version"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// FeedEvent → dispatch_topic exchange → event.{channel}
type FeedEvent struct {
	ID        int64           `json:"id"`
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
