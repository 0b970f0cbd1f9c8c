// Package pricing turns service parameters into an itemized quote. It has no
// state and no side effects: the same input against the same table version
// always yields the same quote.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
)

const (
	TableVersion = "2026.1"

	MinLaborHours = 2.0
	// MaxExtensionHours bounds one time-extension request. Booked labor has
	// no ceiling.
	MaxExtensionHours = 12.0
	MaxHelpers        = 4
)

// DisposalAllowance is the dump-fee allowance included with every haul.
var DisposalAllowance = model.Dollars(50)

var volumeBase = map[model.VolumeTier]model.Money{
	model.TierEighth:       model.Dollars(99),
	model.TierQuarter:      model.Dollars(169),
	model.TierHalf:         model.Dollars(279),
	model.TierThreeQuarter: model.Dollars(389),
	model.TierFull:         model.Dollars(499),
}

var hourlyRate = map[int]model.Money{
	1: model.Dollars(79),
	2: model.Dollars(129),
	3: model.Dollars(179),
	4: model.Dollars(229),
}

type addOn struct {
	id     string
	label  string
	amount model.Money
}

// addOnCatalog order is the order add-on line items appear in a quote.
var addOnCatalog = []addOn{
	{"MATTRESS", "Mattress disposal", model.Dollars(25)},
	{"APPLIANCE", "Appliance disposal", model.Dollars(40)},
	{"TIRE", "Tire disposal", model.Dollars(15)},
	{"HEAVY_ITEM", "Heavy item handling", model.Dollars(50)},
	{"STAIRS", "Stairs carry", model.Dollars(30)},
	{"SAME_DAY", "Same-day service", model.Dollars(49)},
}

// Calculate prices a quote input.
func Calculate(in model.QuoteInput) (model.Quote, error) {
	switch in.ServiceType {
	case model.HaulAway:
		return haulAway(in)
	case model.LaborOnly:
		return laborOnly(in)
	case "":
		return model.Quote{}, myerrors.NewValidation("service_type", "required")
	default:
		return model.Quote{}, myerrors.NewValidation("service_type", fmt.Sprintf("unknown service type %q", in.ServiceType))
	}
}

func haulAway(in model.QuoteInput) (model.Quote, error) {
	if in.HelperCount != 0 || in.EstimatedHours != 0 {
		return model.Quote{}, myerrors.NewValidation("helper_count", "not allowed for HAUL_AWAY")
	}
	if in.VolumeTier == "" {
		return model.Quote{}, myerrors.NewValidation("volume_tier", "required for HAUL_AWAY")
	}
	base, ok := volumeBase[in.VolumeTier]
	if !ok {
		return model.Quote{}, myerrors.NewValidation("volume_tier", fmt.Sprintf("unknown tier %q", in.VolumeTier))
	}

	addOns, err := normalizeAddOns(in.AddOns)
	if err != nil {
		return model.Quote{}, err
	}

	items := []model.LineItem{{
		Label:  fmt.Sprintf("HAUL_AWAY base (%s)", in.VolumeTier),
		Amount: base,
	}}
	total := base
	for _, a := range addOns {
		items = append(items, model.LineItem{Label: a.label, Amount: a.amount})
		total += a.amount
	}

	disposal := DisposalAllowance
	return model.Quote{
		Version:          TableVersion,
		ServiceType:      model.HaulAway,
		LineItems:        items,
		Total:            total,
		DisposalIncluded: &disposal,
		Input: model.QuoteInput{
			ServiceType: model.HaulAway,
			VolumeTier:  in.VolumeTier,
			AddOns:      addOnIDs(addOns),
		},
	}, nil
}

func laborOnly(in model.QuoteInput) (model.Quote, error) {
	if in.VolumeTier != "" {
		return model.Quote{}, myerrors.NewValidation("volume_tier", "not allowed for LABOR_ONLY")
	}
	if len(in.AddOns) > 0 {
		return model.Quote{}, myerrors.NewValidation("add_ons", "not allowed for LABOR_ONLY")
	}
	rate, err := HourlyRate(in.HelperCount)
	if err != nil {
		return model.Quote{}, err
	}
	if in.EstimatedHours < MinLaborHours {
		return model.Quote{}, myerrors.NewValidation("estimated_hours", fmt.Sprintf("minimum is %v hours", MinLaborHours))
	}
	amount, err := laborCost(rate, "estimated_hours", in.EstimatedHours)
	if err != nil {
		return model.Quote{}, err
	}

	return model.Quote{
		Version:     TableVersion,
		ServiceType: model.LaborOnly,
		LineItems: []model.LineItem{{
			Label: fmt.Sprintf("LABOR_ONLY %d %s x %s hours @ %s/hr",
				in.HelperCount, pluralHelpers(in.HelperCount), formatHours(in.EstimatedHours), rate),
			Amount: amount,
		}},
		Total: amount,
		Input: model.QuoteInput{
			ServiceType:    model.LaborOnly,
			HelperCount:    in.HelperCount,
			EstimatedHours: in.EstimatedHours,
		},
	}, nil
}

// HourlyRate is the labor rate for a helper-count bucket.
func HourlyRate(helpers int) (model.Money, error) {
	rate, ok := hourlyRate[helpers]
	if !ok {
		return 0, myerrors.NewValidation("helper_count", fmt.Sprintf("must be in range [1, %d]", MaxHelpers))
	}
	return rate, nil
}

// LaborCost prices a time extension: rate(helpers) x hours, in half-hour
// steps, with no minimum and at most MaxExtensionHours.
func LaborCost(helpers int, hours float64) (model.Money, error) {
	rate, err := HourlyRate(helpers)
	if err != nil {
		return 0, err
	}
	if hours > MaxExtensionHours {
		return 0, myerrors.NewValidation("hours", fmt.Sprintf("must be in range (0, %v]", MaxExtensionHours))
	}
	return laborCost(rate, "hours", hours)
}

func laborCost(rate model.Money, field string, hours float64) (model.Money, error) {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, myerrors.NewValidation(field, "must be a positive number of hours")
	}
	halves := hours * 2
	if halves != math.Trunc(halves) {
		return 0, myerrors.NewValidation(field, "must be a multiple of 0.5")
	}
	if halves > float64(math.MaxInt64/int64(rate)) {
		return 0, myerrors.NewValidation(field, "too many hours")
	}
	return model.Money(int64(rate) * int64(halves) / 2), nil
}

func normalizeAddOns(ids []string) ([]addOn, error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		key := strings.ToUpper(strings.TrimSpace(id))
		if !knownAddOn(key) {
			return nil, myerrors.NewValidation("add_ons", fmt.Sprintf("unknown add-on %q", id))
		}
		if seen[key] {
			return nil, myerrors.NewValidation("add_ons", fmt.Sprintf("add-on %q listed twice", id))
		}
		seen[key] = true
	}

	var out []addOn
	for _, a := range addOnCatalog {
		if seen[a.id] {
			out = append(out, a)
		}
	}
	return out, nil
}

func knownAddOn(id string) bool {
	for _, a := range addOnCatalog {
		if a.id == id {
			return true
		}
	}
	return false
}

func addOnIDs(addOns []addOn) []string {
	if len(addOns) == 0 {
		return nil
	}
	ids := make([]string, 0, len(addOns))
	for _, a := range addOns {
		ids = append(ids, a.id)
	}
	return ids
}

func pluralHelpers(n int) string {
	if n == 1 {
		return "helper"
	}
	return "helpers"
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
