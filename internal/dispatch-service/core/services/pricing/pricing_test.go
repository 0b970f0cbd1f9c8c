package pricing

import (
	"encoding/json"
	"math"
	"testing"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaulAwayQuarter(t *testing.T) {
	q, err := Calculate(model.QuoteInput{ServiceType: model.HaulAway, VolumeTier: model.TierQuarter})
	require.NoError(t, err)

	assert.Equal(t, model.Dollars(169), q.Total)
	assert.Equal(t, "169.00", q.Total.String())
	require.Len(t, q.LineItems, 1)
	assert.Equal(t, model.Dollars(169), q.LineItems[0].Amount)
	require.NotNil(t, q.DisposalIncluded)
	assert.Equal(t, model.Dollars(50), *q.DisposalIncluded)
	assert.Equal(t, TableVersion, q.Version)
}

func TestLaborOnlyTwoHelpersThreeHours(t *testing.T) {
	q, err := Calculate(model.QuoteInput{ServiceType: model.LaborOnly, HelperCount: 2, EstimatedHours: 3})
	require.NoError(t, err)

	assert.Equal(t, "387.00", q.Total.String())
	assert.Nil(t, q.DisposalIncluded)
	require.Len(t, q.LineItems, 1)
	assert.Equal(t, q.Total, q.LineItems[0].Amount)
}

func TestHaulAwayAddOnsAreAdditiveAndCanonical(t *testing.T) {
	a, err := Calculate(model.QuoteInput{
		ServiceType: model.HaulAway,
		VolumeTier:  model.TierHalf,
		AddOns:      []string{"same_day", "MATTRESS"},
	})
	require.NoError(t, err)
	b, err := Calculate(model.QuoteInput{
		ServiceType: model.HaulAway,
		VolumeTier:  model.TierHalf,
		AddOns:      []string{"MATTRESS", "SAME_DAY"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.Dollars(279+25+49), a.Total)
	require.Len(t, a.LineItems, 3)
	assert.Equal(t, "Mattress disposal", a.LineItems[1].Label)
	assert.Equal(t, "Same-day service", a.LineItems[2].Label)
	assert.Equal(t, a, b)
}

func TestQuoteIsDeterministic(t *testing.T) {
	in := model.QuoteInput{ServiceType: model.LaborOnly, HelperCount: 4, EstimatedHours: 2.5}
	first, err := Calculate(in)
	require.NoError(t, err)
	second, err := Calculate(in)
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	assert.Equal(t, "572.50", first.Total.String())
}

func TestCalculateRejects(t *testing.T) {
	cases := map[string]model.QuoteInput{
		"missing service":       {},
		"unknown service":       {ServiceType: "MOVING"},
		"haul without tier":     {ServiceType: model.HaulAway},
		"unknown tier":          {ServiceType: model.HaulAway, VolumeTier: "DOUBLE"},
		"haul with helpers":     {ServiceType: model.HaulAway, VolumeTier: model.TierFull, HelperCount: 2},
		"unknown add-on":        {ServiceType: model.HaulAway, VolumeTier: model.TierFull, AddOns: []string{"PIANO"}},
		"duplicate add-on":      {ServiceType: model.HaulAway, VolumeTier: model.TierFull, AddOns: []string{"TIRE", "tire"}},
		"labor with tier":       {ServiceType: model.LaborOnly, VolumeTier: model.TierHalf, HelperCount: 1, EstimatedHours: 2},
		"labor with add-on":     {ServiceType: model.LaborOnly, AddOns: []string{"STAIRS"}, HelperCount: 1, EstimatedHours: 2},
		"labor under two hours": {ServiceType: model.LaborOnly, HelperCount: 2, EstimatedHours: 1.5},
		"labor five helpers":    {ServiceType: model.LaborOnly, HelperCount: 5, EstimatedHours: 3},
		"labor zero helpers":    {ServiceType: model.LaborOnly, EstimatedHours: 3},
		"labor quarter hours":   {ServiceType: model.LaborOnly, HelperCount: 1, EstimatedHours: 2.25},
		"labor infinite hours":  {ServiceType: model.LaborOnly, HelperCount: 1, EstimatedHours: math.Inf(1)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Calculate(in)
			assert.ErrorIs(t, err, myerrors.ErrValidation)
		})
	}
}

func TestLaborCostForExtensions(t *testing.T) {
	cost, err := LaborCost(2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "64.50", cost.String())

	_, err = LaborCost(2, 0)
	assert.ErrorIs(t, err, myerrors.ErrValidation)
	_, err = LaborCost(2, MaxExtensionHours+0.5)
	assert.ErrorIs(t, err, myerrors.ErrValidation)
}

func TestLaborOnlyHasNoHourCeiling(t *testing.T) {
	q, err := Calculate(model.QuoteInput{ServiceType: model.LaborOnly, HelperCount: 2, EstimatedHours: 14})
	require.NoError(t, err)
	assert.Equal(t, "1806.00", q.Total.String())

	q, err = Calculate(model.QuoteInput{ServiceType: model.LaborOnly, HelperCount: 1, EstimatedHours: 40.5})
	require.NoError(t, err)
	assert.Equal(t, "3199.50", q.Total.String())
}
