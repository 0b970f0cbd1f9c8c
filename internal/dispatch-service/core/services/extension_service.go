package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/dispatch-service/core/services/pricing"
	"haul-dispatch/internal/mylogger"

	"github.com/google/uuid"
)

// ExtensionService handles extra billed hours on LABOR_ONLY jobs. The quote
// snapshot is never touched; approvals only move the billed total.
type ExtensionService struct {
	mylog      mylogger.Logger
	jobs       ports.IJobsRepo
	extensions ports.IExtensionsRepo
	events     fanout
	clock      func() time.Time
}

func NewExtensionService(log mylogger.Logger, jobs ports.IJobsRepo, extensions ports.IExtensionsRepo, feed ports.IFeedService) *ExtensionService {
	return &ExtensionService{
		mylog:      log,
		jobs:       jobs,
		extensions: extensions,
		events:     fanout{mylog: log, feed: feed},
		clock:      time.Now,
	}
}

func (s *ExtensionService) Request(ctx context.Context, jobId, driverId string, req dto.TimeExtensionRequest) (dto.TimeExtensionResponse, error) {
	log := s.mylog.Action("RequestExtension").With("job_id", jobId, "driver_id", driverId)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	job, err := s.jobs.Get(ctx, jobId)
	if err != nil {
		return dto.TimeExtensionResponse{}, err
	}
	if job.ServiceType != model.LaborOnly {
		return dto.TimeExtensionResponse{}, myerrors.NewValidation("service_type", "time extensions apply to LABOR_ONLY jobs only")
	}
	if job.AssignedDriverId != nil && !job.AssignedTo(driverId) {
		return dto.TimeExtensionResponse{}, fmt.Errorf("job %s is assigned to another driver: %w", jobId, myerrors.ErrForbidden)
	}
	if job.Status != model.JobInProgress || !job.AssignedTo(driverId) {
		return dto.TimeExtensionResponse{}, &myerrors.InvalidTransitionError{JobID: jobId, Current: string(job.Status), Requested: "request extension"}
	}

	cost, err := pricing.LaborCost(job.HelperCount, req.AdditionalHours)
	if err != nil {
		return dto.TimeExtensionResponse{}, err
	}

	ext := model.TimeExtension{
		ID:              uuid.NewString(),
		JobID:           jobId,
		DriverID:        driverId,
		AdditionalHours: req.AdditionalHours,
		AdditionalCost:  cost,
		Status:          model.ExtensionPending,
		CreatedAt:       s.clock().UTC(),
	}
	if err := s.extensions.Create(ctx, ext); err != nil {
		if !errors.Is(err, myerrors.ErrExtensionPending) {
			log.Error("cannot insert time extension", err)
		}
		return dto.TimeExtensionResponse{}, err
	}
	log.Info("time extension requested", "extension_id", ext.ID, "hours", ext.AdditionalHours, "cost", cost.String())

	resp := dto.NewTimeExtensionResponse(ext, job.BilledTotal)
	s.publish(ctx, job, resp)
	return resp, nil
}

// Resolve approves or declines a pending request on behalf of the job's
// customer. Approval requires the job to still be in progress.
func (s *ExtensionService) Resolve(ctx context.Context, extensionId, customerId string, approve bool) (dto.TimeExtensionResponse, error) {
	log := s.mylog.Action("ResolveExtension").With("extension_id", extensionId, "customer_id", customerId, "approve", approve)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ext, err := s.extensions.Get(ctx, extensionId)
	if err != nil {
		return dto.TimeExtensionResponse{}, err
	}
	job, err := s.jobs.Get(ctx, ext.JobID)
	if err != nil {
		return dto.TimeExtensionResponse{}, err
	}
	if job.Customer.ID != customerId {
		return dto.TimeExtensionResponse{}, fmt.Errorf("extension %s: %w", extensionId, myerrors.ErrForbidden)
	}

	status := model.ExtensionDeclined
	if approve {
		status = model.ExtensionApproved
	}
	resolved, job, matched, err := s.extensions.Resolve(ctx, extensionId, status, s.clock().UTC())
	if err != nil {
		log.Error("cannot resolve time extension", err)
		return dto.TimeExtensionResponse{}, err
	}
	if !matched {
		current, err := s.extensions.Get(ctx, extensionId)
		if err != nil {
			return dto.TimeExtensionResponse{}, err
		}
		if current.Status == model.ExtensionPending {
			return dto.TimeExtensionResponse{}, fmt.Errorf("extension %s: job is no longer in progress: %w", extensionId, myerrors.ErrInvalidTransition)
		}
		return dto.TimeExtensionResponse{}, fmt.Errorf("extension %s is already %s: %w", extensionId, current.Status, myerrors.ErrInvalidTransition)
	}
	log.Info("time extension resolved", "status", string(resolved.Status), "billed_total", job.BilledTotal.String())

	resp := dto.NewTimeExtensionResponse(resolved, job.BilledTotal)
	s.publish(ctx, job, resp)
	return resp, nil
}

func (s *ExtensionService) publish(ctx context.Context, job model.Job, resp dto.TimeExtensionResponse) {
	s.events.publish(ctx, model.EventTimeExtension, resp,
		model.JobChannel(job.ID), model.CustomerChannel(job.Customer.ID), model.DriverChannel(resp.DriverID), model.ChannelAdmins)
}
