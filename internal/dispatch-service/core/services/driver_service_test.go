package services

import (
	"context"
	"encoding/json"
	"testing"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndApproveDriver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := h.driverSvc.Register(ctx, dto.RegisterDriverRequest{
		DriverID:     "d1",
		Name:         "Sam",
		Capabilities: []model.ServiceType{model.HaulAway},
		Vehicle:      model.Vehicle{Make: "Isuzu", Model: "NPR", Plate: "TX-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DriverPending, d.ApprovalStatus)
	assert.False(t, d.IsOnline)

	_, err = h.driverSvc.GoOnline(ctx, "d1", dto.PresenceRequest{})
	require.NoError(t, err)
	_, err = h.matching.Available(ctx, "d1")
	assert.ErrorIs(t, err, myerrors.ErrNotEligible)

	d, err = h.driverSvc.SetApproval(ctx, "d1", model.DriverApproved)
	require.NoError(t, err)
	assert.Equal(t, model.DriverApproved, d.ApprovalStatus)
	assert.True(t, d.IsOnline)
	_, err = h.matching.Available(ctx, "d1")
	assert.NoError(t, err)

	_, err = h.driverSvc.SetApproval(ctx, "d1", "active")
	assert.ErrorIs(t, err, myerrors.ErrValidation)
	_, err = h.driverSvc.SetApproval(ctx, "ghost", model.DriverBlocked)
	assert.ErrorIs(t, err, myerrors.ErrNotFound)
}

func TestRegisterDriverValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]dto.RegisterDriverRequest{
		"no name":         {Capabilities: []model.ServiceType{model.HaulAway}, Vehicle: model.Vehicle{Plate: "X"}},
		"no capabilities": {Name: "Sam", Vehicle: model.Vehicle{Plate: "X"}},
		"bad capability":  {Name: "Sam", Capabilities: []model.ServiceType{"MOVING"}, Vehicle: model.Vehicle{Plate: "X"}},
		"no plate":        {Name: "Sam", Capabilities: []model.ServiceType{model.LaborOnly}},
		"bad id":          {DriverID: "a:b", Name: "Sam", Capabilities: []model.ServiceType{model.LaborOnly}, Vehicle: model.Vehicle{Plate: "X"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.driverSvc.Register(context.Background(), req)
			assert.ErrorIs(t, err, myerrors.ErrValidation)
		})
	}
}

func TestLocationUpdateReachesActiveJobs(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)
	idle := createJob(t, h, "c2", quarterHaul)
	_, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)

	lat, lng := 30.3, -97.7
	d, err := h.driverSvc.UpdateLocation(ctx, "d1", dto.LocationRequest{Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	require.NotNil(t, d.Location)
	assert.Equal(t, lat, d.Location.Latitude)

	resp, err := h.feed.Read(ctx, model.CustomerChannel("c1"), 0)
	require.NoError(t, err)
	last := resp.Events[len(resp.Events)-1]
	assert.Equal(t, model.EventLocationUpdate, last.Type)

	var payload dto.LocationPayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, created.JobID, payload.JobID)
	assert.Equal(t, lng, payload.Lng)

	assert.NotContains(t, h.events.types(model.JobChannel(idle.JobID)), model.EventLocationUpdate)

	_, err = h.driverSvc.UpdateLocation(ctx, "d1", dto.LocationRequest{Latitude: &lat})
	assert.ErrorIs(t, err, myerrors.ErrValidation)
	bad := 91.0
	_, err = h.driverSvc.UpdateLocation(ctx, "d1", dto.LocationRequest{Latitude: &bad, Longitude: &lng})
	assert.ErrorIs(t, err, myerrors.ErrValidation)
}
