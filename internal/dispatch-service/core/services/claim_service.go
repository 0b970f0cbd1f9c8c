package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

// ClaimCoordinator lets at most one driver win a job. Eligibility is read
// first; ownership is decided only by the repository's conditional write.
type ClaimCoordinator struct {
	mylog   mylogger.Logger
	jobs    ports.IJobsRepo
	drivers ports.IDriversRepo
	clock   func() time.Time
}

func NewClaimCoordinator(log mylogger.Logger, jobs ports.IJobsRepo, drivers ports.IDriversRepo) *ClaimCoordinator {
	return &ClaimCoordinator{
		mylog:   log,
		jobs:    jobs,
		drivers: drivers,
		clock:   time.Now,
	}
}

func (c *ClaimCoordinator) Claim(ctx context.Context, jobId, driverId string) (model.Job, error) {
	log := c.mylog.Action("Claim").With("job_id", jobId, "driver_id", driverId)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	driver, err := c.drivers.Get(ctx, driverId)
	if err != nil {
		if !errors.Is(err, myerrors.ErrNotFound) {
			log.Error("cannot get driver", err)
		}
		return model.Job{}, err
	}
	if err := eligible(driver); err != nil {
		return model.Job{}, err
	}

	job, err := c.jobs.Get(ctx, jobId)
	if err != nil {
		if !errors.Is(err, myerrors.ErrNotFound) {
			log.Error("cannot get job", err)
		}
		return model.Job{}, err
	}
	if !driver.Can(job.ServiceType) {
		return model.Job{}, &myerrors.NotEligibleError{DriverID: driverId, Reason: fmt.Sprintf("cannot perform %s", job.ServiceType)}
	}

	claimed, matched, err := c.jobs.Claim(ctx, jobId, driverId, c.clock().UTC())
	if err != nil {
		log.Error("claim write failed", err)
		return model.Job{}, err
	}
	if !matched {
		log.Debug("claim lost")
		return model.Job{}, fmt.Errorf("job %s: %w", jobId, myerrors.ErrJobNoLongerAvailable)
	}

	log.Info("job claimed")
	return claimed, nil
}

func eligible(d model.Driver) error {
	switch {
	case d.ApprovalStatus != model.DriverApproved:
		return &myerrors.NotEligibleError{DriverID: d.ID, Reason: "approval status is " + string(d.ApprovalStatus)}
	case !d.IsOnline:
		return &myerrors.NotEligibleError{DriverID: d.ID, Reason: "driver is offline"}
	}
	return nil
}
