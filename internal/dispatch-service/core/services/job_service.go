package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	messagebrokerdto "haul-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/dispatch-service/core/services/pricing"
	"haul-dispatch/internal/mylogger"

	"github.com/google/uuid"
)

const maxCancelReasonLen = 500

// PayoutPolicy is the driver share applied when a job completes.
type PayoutPolicy struct {
	Percent int
	Version string
}

type JobService struct {
	mylog   mylogger.Logger
	jobs    ports.IJobsRepo
	drivers ports.IDriversRepo
	claims  *ClaimCoordinator
	events  fanout
	broker  ports.IDispatchBroker
	payout  PayoutPolicy
	clock   func() time.Time
}

// NewJobService wires the state machine. broker may be nil, in which case
// payout messages are not published.
func NewJobService(
	log mylogger.Logger,
	jobs ports.IJobsRepo,
	drivers ports.IDriversRepo,
	claims *ClaimCoordinator,
	feed ports.IFeedService,
	broker ports.IDispatchBroker,
	payout PayoutPolicy,
) *JobService {
	return &JobService{
		mylog:   log,
		jobs:    jobs,
		drivers: drivers,
		claims:  claims,
		events:  fanout{mylog: log, feed: feed},
		broker:  broker,
		payout:  payout,
		clock:   time.Now,
	}
}

func (s *JobService) Create(ctx context.Context, actor model.Actor, req dto.CreateJobRequest) (dto.CreateJobResponse, error) {
	log := s.mylog.Action("CreateJob").With("customer_id", actor.ID)

	if actor.ID == "" {
		return dto.CreateJobResponse{}, myerrors.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return dto.CreateJobResponse{}, err
	}
	now := s.clock().UTC()
	if req.ScheduledFor.Before(now) {
		return dto.CreateJobResponse{}, myerrors.NewValidation("scheduled_for", "must be in the future")
	}

	quote, err := pricing.Calculate(req.Quote)
	if err != nil {
		return dto.CreateJobResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// a redelivered payment result books the same job, never a second one
	if req.PaymentReference != "" {
		existing, err := s.jobs.GetByPaymentReference(ctx, req.PaymentReference)
		if err == nil {
			log.Info("job already booked for payment", "payment_reference", req.PaymentReference, "job_id", existing.ID)
			return createdResponse(existing), nil
		}
		if !errors.Is(err, myerrors.ErrNotFound) {
			log.Error("cannot look up payment reference", err)
			return dto.CreateJobResponse{}, err
		}
	}

	job := model.Job{
		ID:          uuid.NewString(),
		ServiceType: quote.ServiceType,
		Customer: model.Customer{
			ID:    actor.ID,
			Name:  strings.TrimSpace(req.Customer.Name),
			Phone: strings.TrimSpace(req.Customer.Phone),
			Email: strings.TrimSpace(req.Customer.Email),
		},
		Pickup:           req.Pickup,
		ScheduledFor:     req.ScheduledFor.UTC(),
		TimeWindow:       req.TimeWindow,
		VolumeTier:       quote.Input.VolumeTier,
		HelperCount:      quote.Input.HelperCount,
		EstimatedHours:   quote.Input.EstimatedHours,
		Notes:            req.Notes,
		PricingSnapshot:  quote,
		BilledTotal:      quote.Total,
		PaymentReference: req.PaymentReference,
		Status:           model.JobPending,
		TrackingToken:    newTrackingToken(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, myerrors.ErrDuplicatePayment) {
			// a concurrent delivery of the same payment won the insert
			existing, getErr := s.jobs.GetByPaymentReference(ctx, req.PaymentReference)
			if getErr == nil {
				log.Info("job already booked for payment", "payment_reference", req.PaymentReference, "job_id", existing.ID)
				return createdResponse(existing), nil
			}
			err = getErr
		}
		log.Error("cannot insert job", err)
		return dto.CreateJobResponse{}, err
	}
	log.Info("job created", "job_id", job.ID, "service_type", job.ServiceType, "total", job.BilledTotal.String())

	s.events.publish(ctx, model.EventJobOffer, dto.NewAvailableJob(job, nil), model.ChannelAllDrivers)
	s.events.publish(ctx, model.EventJobUpdate, jobUpdate(job, "", ""),
		model.CustomerChannel(job.Customer.ID), model.JobChannel(job.ID), model.ChannelAdmins)

	return createdResponse(job), nil
}

func (s *JobService) Get(ctx context.Context, actor model.Actor, jobId string) (dto.JobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	job, err := s.jobs.Get(ctx, jobId)
	if err != nil {
		return dto.JobResponse{}, err
	}
	if !canView(job, actor) {
		return dto.JobResponse{}, fmt.Errorf("job %s: %w", jobId, myerrors.ErrForbidden)
	}
	return dto.NewJobResponse(job), nil
}

func canView(job model.Job, actor model.Actor) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCustomer:
		return job.Customer.ID == actor.ID
	case model.RoleDriver:
		return job.AssignedTo(actor.ID)
	}
	return false
}

func (s *JobService) Track(ctx context.Context, req dto.TrackRequest) (dto.TrackResponse, error) {
	log := s.mylog.Action("Track")

	token := strings.TrimSpace(req.TrackingToken)
	jobId := strings.TrimSpace(req.JobID)
	if token == "" && jobId == "" {
		return dto.TrackResponse{}, myerrors.NewValidation("tracking_token", "tracking_token or job_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		job model.Job
		err error
	)
	if token != "" {
		job, err = s.jobs.GetByTrackingToken(ctx, token)
	} else {
		if uuid.Validate(jobId) != nil {
			return dto.TrackResponse{}, myerrors.NotFound("job", jobId)
		}
		job, err = s.jobs.Get(ctx, jobId)
	}
	if err != nil {
		return dto.TrackResponse{}, err
	}

	resp := dto.TrackResponse{
		JobID:          job.ID,
		Status:         job.Status,
		ServiceType:    job.ServiceType,
		ScheduledFor:   job.ScheduledFor,
		TimeWindow:     job.TimeWindow,
		City:           job.Pickup.City,
		Total:          job.PricingSnapshot.Total,
		BilledTotal:    job.BilledTotal,
		DriverAssigned: job.AssignedDriverId != nil,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		CompletedAt:    job.CompletedAt,
	}
	if job.AssignedDriverId != nil {
		driver, err := s.drivers.Get(ctx, *job.AssignedDriverId)
		if err != nil {
			log.Warn("cannot load assigned driver", "job_id", job.ID, "error", err.Error())
		} else {
			resp.DriverName = driver.Name
			resp.Vehicle = &driver.Vehicle
		}
	}
	return resp, nil
}

func (s *JobService) Claim(ctx context.Context, jobId, driverId string) (dto.JobResponse, error) {
	job, err := s.claims.Claim(ctx, jobId, driverId)
	if err != nil {
		return dto.JobResponse{}, err
	}

	s.events.publish(ctx, model.EventJobUpdate, jobUpdate(job, model.JobPending, ""),
		model.JobChannel(job.ID), model.CustomerChannel(job.Customer.ID), model.DriverChannel(driverId), model.ChannelAdmins)
	s.events.publish(ctx, model.EventJobTaken, dto.JobTakenPayload{JobID: job.ID}, model.ChannelAllDrivers)

	return dto.NewJobResponse(job), nil
}

func (s *JobService) Start(ctx context.Context, jobId, driverId string) (dto.JobResponse, error) {
	return s.apply(ctx, model.Actor{ID: driverId, Role: model.RoleDriver}, ActionStart, ports.JobTransition{JobID: jobId}, "")
}

func (s *JobService) Complete(ctx context.Context, jobId, driverId string) (dto.JobResponse, error) {
	now := s.clock().UTC()
	pct := s.payout.Percent
	t := ports.JobTransition{
		JobID:         jobId,
		CompletedAt:   &now,
		PayoutPercent: &pct,
		PayoutVersion: s.payout.Version,
	}
	resp, err := s.apply(ctx, model.Actor{ID: driverId, Role: model.RoleDriver}, ActionComplete, t, "")
	if err != nil {
		return resp, err
	}
	s.publishPayout(ctx, resp)
	return resp, nil
}

// Cancel is a terminal cancel for the owning customer or an admin. For the
// assigned driver it is a release: the job goes back to pending and is
// offered again.
func (s *JobService) Cancel(ctx context.Context, jobId string, actor model.Actor, reason string) (dto.JobResponse, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxCancelReasonLen {
		return dto.JobResponse{}, myerrors.NewValidation("reason", "too long")
	}

	switch actor.Role {
	case model.RoleDriver:
		resp, err := s.apply(ctx, actor, ActionRelease, ports.JobTransition{JobID: jobId, ClearDriver: true}, reason)
		if err != nil {
			return resp, err
		}
		s.reoffer(ctx, jobId)
		return resp, nil
	case model.RoleCustomer, model.RoleAdmin:
		now := s.clock().UTC()
		t := ports.JobTransition{
			JobID:        jobId,
			ClearDriver:  true,
			CancelledAt:  &now,
			CancelReason: reason,
		}
		if actor.Role == model.RoleCustomer {
			t.Customer = &actor.ID
		}
		return s.apply(ctx, actor, ActionCancel, t, reason)
	}
	return dto.JobResponse{}, myerrors.ErrForbidden
}

// apply runs one conditional transition and appends its job_update events.
// t carries the action-specific columns; From, To and the driver filter come
// from the action's rule.
func (s *JobService) apply(ctx context.Context, actor model.Actor, a Action, t ports.JobTransition, reason string) (dto.JobResponse, error) {
	log := s.mylog.Action("Transition").With("job_id", t.JobID, "action", string(a), "actor_id", actor.ID, "role", string(actor.Role))

	r := ruleFor(a)
	t.From = r.sources()
	t.To = r.to
	t.At = s.clock().UTC()
	if r.byDriver {
		t.Driver = &actor.ID
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, matched, err := s.jobs.Transition(ctx, t)
	if err != nil {
		log.Error("transition write failed", err)
		return dto.JobResponse{}, err
	}
	if !matched {
		current, err := s.jobs.Get(ctx, t.JobID)
		if err != nil {
			return dto.JobResponse{}, err
		}
		refused := refusal(current, actor, a)
		log.Debug("transition refused", "status", string(current.Status), "reason", refused.Error())
		return dto.JobResponse{}, refused
	}
	job := res.Job
	log.Info("job transitioned", "from", string(res.PreviousStatus), "to", string(job.Status))

	channels := []string{model.JobChannel(job.ID), model.CustomerChannel(job.Customer.ID)}
	if job.AssignedDriverId != nil {
		channels = append(channels, model.DriverChannel(*job.AssignedDriverId))
	} else if res.PreviousDriver != nil {
		channels = append(channels, model.DriverChannel(*res.PreviousDriver))
	}
	channels = append(channels, model.ChannelAdmins)
	s.events.publish(ctx, model.EventJobUpdate, jobUpdate(job, res.PreviousStatus, reason), channels...)

	return dto.NewJobResponse(job), nil
}

func (s *JobService) reoffer(ctx context.Context, jobId string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	job, err := s.jobs.Get(ctx, jobId)
	if err != nil {
		s.mylog.Action("Reoffer").Error("cannot reload released job", err, "job_id", jobId)
		return
	}
	if job.Status != model.JobPending {
		return
	}
	s.events.publish(ctx, model.EventJobOffer, dto.NewAvailableJob(job, nil), model.ChannelAllDrivers)
}

func (s *JobService) publishPayout(ctx context.Context, job dto.JobResponse) {
	if s.broker == nil || job.DriverPayout == nil || job.AssignedDriverId == nil {
		return
	}
	log := s.mylog.Action("PublishPayout").With("job_id", job.JobID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	msg := messagebrokerdto.PayoutFinalize{
		JobID:         job.JobID,
		DriverID:      *job.AssignedDriverId,
		BilledTotal:   job.BilledTotal,
		DriverPayout:  *job.DriverPayout,
		PayoutPercent: s.payout.Percent,
		PayoutVersion: s.payout.Version,
	}
	if job.CompletedAt != nil {
		msg.CompletedAt = *job.CompletedAt
	}
	if err := s.broker.PublishPayout(ctx, msg); err != nil {
		log.Error("cannot publish payout", err)
		return
	}
	log.Info("payout published", "driver_payout", msg.DriverPayout.String())
}

func jobUpdate(job model.Job, previous model.JobStatus, reason string) dto.JobUpdatePayload {
	return dto.JobUpdatePayload{
		JobID:            job.ID,
		Status:           job.Status,
		PreviousStatus:   previous,
		AssignedDriverId: job.AssignedDriverId,
		Reason:           reason,
		UpdatedAt:        job.UpdatedAt,
	}
}

func createdResponse(job model.Job) dto.CreateJobResponse {
	return dto.CreateJobResponse{
		JobID:         job.ID,
		TrackingToken: job.TrackingToken,
		Status:        job.Status,
		Quote:         job.PricingSnapshot,
	}
}

func newTrackingToken() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "HD-" + strings.ToUpper(raw[:16])
}
