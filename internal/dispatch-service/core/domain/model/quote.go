package model

type ServiceType string

const (
	HaulAway  ServiceType = "HAUL_AWAY"
	LaborOnly ServiceType = "LABOR_ONLY"
)

func (s ServiceType) Valid() bool {
	return s == HaulAway || s == LaborOnly
}

type VolumeTier string

const (
	TierEighth       VolumeTier = "EIGHTH"
	TierQuarter      VolumeTier = "QUARTER"
	TierHalf         VolumeTier = "HALF"
	TierThreeQuarter VolumeTier = "THREE_QUARTER"
	TierFull         VolumeTier = "FULL"
)

// QuoteInput is everything the pricing engine looks at.
type QuoteInput struct {
	ServiceType    ServiceType `json:"service_type"`
	VolumeTier     VolumeTier  `json:"volume_tier,omitempty"`
	AddOns         []string    `json:"add_ons,omitempty"`
	HelperCount    int         `json:"helper_count,omitempty"`
	EstimatedHours float64     `json:"estimated_hours,omitempty"`
}

type LineItem struct {
	Label  string `json:"label"`
	Amount Money  `json:"amount"`
}

// Quote is an itemized price. Stored on a job it becomes the immutable pricing snapshot.
type Quote struct {
	Version          string      `json:"version"`
	ServiceType      ServiceType `json:"service_type"`
	LineItems        []LineItem  `json:"line_items"`
	Total            Money       `json:"total"`
	DisposalIncluded *Money      `json:"disposal_included,omitempty"`
	Input            QuoteInput  `json:"input"`
}
