package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/mylogger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingRequest(at time.Time, in model.QuoteInput) dto.CreateJobRequest {
	when := at.Add(24 * time.Hour)
	return dto.CreateJobRequest{
		Quote:    in,
		Customer: dto.CustomerInfo{Name: "Pat Doe", Phone: "+15550100"},
		Pickup: model.Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701",
			Location:   model.Location{Latitude: 30.2672, Longitude: -97.7431},
		},
		ScheduledFor: &when,
		TimeWindow:   model.WindowMorning,
	}
}

func createJob(t *testing.T, h *harness, customerId string, in model.QuoteInput) dto.CreateJobResponse {
	t.Helper()
	resp, err := h.jobSvc.Create(context.Background(), model.Actor{ID: customerId, Role: model.RoleCustomer}, bookingRequest(h.now, in))
	require.NoError(t, err)
	return resp
}

var quarterHaul = model.QuoteInput{ServiceType: model.HaulAway, VolumeTier: model.TierQuarter}

func TestCreateJobSnapshotsQuoteAndOffers(t *testing.T) {
	h := newHarness(t)
	resp := createJob(t, h, "c1", quarterHaul)

	assert.Equal(t, model.JobPending, resp.Status)
	assert.NotEmpty(t, resp.TrackingToken)
	assert.Equal(t, "169.00", resp.Quote.Total.String())

	job, err := h.jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Nil(t, job.AssignedDriverId)
	assert.Equal(t, resp.Quote, job.PricingSnapshot)
	assert.Equal(t, job.PricingSnapshot.Total, job.BilledTotal)

	assert.Equal(t, []string{model.EventJobOffer}, h.events.types(model.ChannelAllDrivers))
	assert.Equal(t, []string{model.EventJobUpdate}, h.events.types(model.CustomerChannel("c1")))
	assert.Equal(t, []string{model.EventJobUpdate}, h.events.types(model.ChannelAdmins))
}

func TestCreateJobRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := model.Actor{ID: "c1", Role: model.RoleCustomer}

	req := bookingRequest(h.now, model.QuoteInput{ServiceType: model.LaborOnly, HelperCount: 2, EstimatedHours: 1})
	_, err := h.jobSvc.Create(ctx, actor, req)
	assert.ErrorIs(t, err, myerrors.ErrValidation)

	req = bookingRequest(h.now, quarterHaul)
	past := h.now.Add(-time.Hour)
	req.ScheduledFor = &past
	_, err = h.jobSvc.Create(ctx, actor, req)
	assert.ErrorIs(t, err, myerrors.ErrValidation)

	req = bookingRequest(h.now, quarterHaul)
	req.TimeWindow = "NIGHT"
	_, err = h.jobSvc.Create(ctx, actor, req)
	assert.ErrorIs(t, err, myerrors.ErrValidation)
}

func TestCreateJobIsIdempotentPerPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := model.Actor{ID: "c1", Role: model.RoleCustomer}
	req := bookingRequest(h.now, quarterHaul)
	req.PaymentReference = "pay_123"

	first, err := h.jobSvc.Create(ctx, actor, req)
	require.NoError(t, err)
	second, err := h.jobSvc.Create(ctx, actor, req)
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.JobID)
	assert.Len(t, h.events.types(model.ChannelAllDrivers), 1)
}

// racedJobs lets a competing booking of the same payment land between the
// lookup and the insert.
type racedJobs struct {
	*memJobs
	winner model.Job
	once   sync.Once
}

func (r *racedJobs) GetByPaymentReference(ctx context.Context, ref string) (model.Job, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		j, err := r.memJobs.GetByPaymentReference(ctx, ref)
		r.memJobs.put(r.winner)
		return j, err
	}
	return r.memJobs.GetByPaymentReference(ctx, ref)
}

func TestCreateJobLosingPaymentRaceReturnsWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	winner := pendingJob("winner", model.HaulAway, model.Location{}, h.now)
	winner.PaymentReference = "pay_race"
	jobs := &racedJobs{memJobs: h.jobs, winner: winner}
	svc := NewJobService(mylogger.Discard(), jobs, h.drivers, NewClaimCoordinator(mylogger.Discard(), jobs, h.drivers), h.feed, h.broker, PayoutPolicy{Percent: 60})
	svc.clock = func() time.Time { return h.now }

	req := bookingRequest(h.now, quarterHaul)
	req.PaymentReference = "pay_race"
	got, err := svc.Create(ctx, model.Actor{ID: "c1", Role: model.RoleCustomer}, req)
	require.NoError(t, err)
	assert.Equal(t, "winner", got.JobID)

	h.jobs.mu.Lock()
	defer h.jobs.mu.Unlock()
	assert.Len(t, h.jobs.rows, 1)
	assert.Empty(t, h.events.types(model.ChannelAllDrivers))
}

func TestLifecycleHappyPath(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)

	claimed, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.JobAssigned, claimed.Status)
	require.NotNil(t, claimed.AssignedDriverId)
	assert.Equal(t, "d1", *claimed.AssignedDriverId)

	started, err := h.jobSvc.Start(ctx, created.JobID, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.JobInProgress, started.Status)

	h.now = h.now.Add(3 * time.Hour)
	done, err := h.jobSvc.Complete(ctx, created.JobID, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, h.now, *done.CompletedAt)
	require.NotNil(t, done.DriverPayout)
	assert.Equal(t, "101.40", done.DriverPayout.String())

	require.Len(t, h.broker.payouts, 1)
	assert.Equal(t, "d1", h.broker.payouts[0].DriverID)
	assert.Equal(t, "v1", h.broker.payouts[0].PayoutVersion)

	assert.Equal(t,
		[]string{model.EventJobUpdate, model.EventJobUpdate, model.EventJobUpdate, model.EventJobUpdate},
		h.events.types(model.JobChannel(created.JobID)))
	assert.Equal(t,
		[]string{model.EventJobUpdate, model.EventJobUpdate, model.EventJobUpdate},
		h.events.types(model.DriverChannel("d1")))
	assert.Equal(t, []string{model.EventJobOffer, model.EventJobTaken}, h.events.types(model.ChannelAllDrivers))
}

func TestRepeatedStartAndCompleteAreInvalidTransitions(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)

	_, err := h.jobSvc.Complete(ctx, created.JobID, "d1")
	var invalid *myerrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "pending", invalid.Current)
	assert.Equal(t, "complete", invalid.Requested)

	_, err = h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)
	_, err = h.jobSvc.Start(ctx, created.JobID, "d1")
	require.NoError(t, err)

	_, err = h.jobSvc.Start(ctx, created.JobID, "d1")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "in_progress", invalid.Current)

	_, err = h.jobSvc.Complete(ctx, created.JobID, "d1")
	require.NoError(t, err)
	_, err = h.jobSvc.Complete(ctx, created.JobID, "d1")
	assert.ErrorIs(t, err, myerrors.ErrInvalidTransition)
	assert.Len(t, h.broker.payouts, 1)
}

func TestOtherDriverIsForbidden(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"), approvedDriver("d2"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)
	_, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)

	_, err = h.jobSvc.Start(ctx, created.JobID, "d2")
	assert.ErrorIs(t, err, myerrors.ErrForbidden)
	_, err = h.jobSvc.Cancel(ctx, created.JobID, model.Actor{ID: "d2", Role: model.RoleDriver}, "")
	assert.ErrorIs(t, err, myerrors.ErrForbidden)

	_, err = h.jobSvc.Get(ctx, model.Actor{ID: "d2", Role: model.RoleDriver}, created.JobID)
	assert.ErrorIs(t, err, myerrors.ErrForbidden)
	_, err = h.jobSvc.Get(ctx, model.Actor{ID: "d1", Role: model.RoleDriver}, created.JobID)
	assert.NoError(t, err)
}

func TestDriverReleaseReoffersJob(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"), approvedDriver("d2"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)
	_, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)

	released, err := h.jobSvc.Cancel(ctx, created.JobID, model.Actor{ID: "d1", Role: model.RoleDriver}, "truck broke down")
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, released.Status)
	assert.Nil(t, released.AssignedDriverId)

	assert.Equal(t, []string{model.EventJobOffer, model.EventJobTaken, model.EventJobOffer}, h.events.types(model.ChannelAllDrivers))
	// the releasing driver still hears about it
	assert.Len(t, h.events.types(model.DriverChannel("d1")), 2)

	again, err := h.jobSvc.Claim(ctx, created.JobID, "d2")
	require.NoError(t, err)
	assert.Equal(t, "d2", *again.AssignedDriverId)
}

func TestCustomerCancelIsTerminal(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)
	_, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)

	_, err = h.jobSvc.Cancel(ctx, created.JobID, model.Actor{ID: "c2", Role: model.RoleCustomer}, "")
	assert.ErrorIs(t, err, myerrors.ErrForbidden)

	cancelled, err := h.jobSvc.Cancel(ctx, created.JobID, model.Actor{ID: "c1", Role: model.RoleCustomer}, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.JobCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AssignedDriverId)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	assert.Len(t, h.events.types(model.DriverChannel("d1")), 2)

	_, err = h.jobSvc.Cancel(ctx, created.JobID, model.Actor{ID: "admin", Role: model.RoleAdmin}, "")
	assert.ErrorIs(t, err, myerrors.ErrInvalidTransition)
	_, err = h.jobSvc.Claim(ctx, created.JobID, "d1")
	assert.ErrorIs(t, err, myerrors.ErrJobNoLongerAvailable)
}

func TestTrackHidesContactData(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)

	view, err := h.jobSvc.Track(ctx, dto.TrackRequest{TrackingToken: created.TrackingToken})
	require.NoError(t, err)
	assert.False(t, view.DriverAssigned)
	assert.Equal(t, "Austin", view.City)

	_, err = h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)
	view, err = h.jobSvc.Track(ctx, dto.TrackRequest{JobID: created.JobID})
	require.NoError(t, err)
	assert.True(t, view.DriverAssigned)
	require.NotNil(t, view.Vehicle)
	assert.Equal(t, "HD-d1", view.Vehicle.Plate)

	_, err = h.jobSvc.Track(ctx, dto.TrackRequest{TrackingToken: "HD-NOPE"})
	assert.ErrorIs(t, err, myerrors.ErrNotFound)
	_, err = h.jobSvc.Track(ctx, dto.TrackRequest{})
	assert.ErrorIs(t, err, myerrors.ErrValidation)
}

func TestEventAppendFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t, approvedDriver("d1"))
	ctx := context.Background()
	created := createJob(t, h, "c1", quarterHaul)

	// first append of the fan-out fails twice: dropped, the rest still land
	h.events.failing = 2
	resp, err := h.jobSvc.Claim(ctx, created.JobID, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.JobAssigned, resp.Status)
	assert.Len(t, h.events.types(model.JobChannel(created.JobID)), 1)
	assert.Len(t, h.events.types(model.CustomerChannel("c1")), 2)
}
