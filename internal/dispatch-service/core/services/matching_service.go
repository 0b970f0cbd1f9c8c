package services

import (
	"context"
	"errors"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type MatchingOptions struct {
	// MaxRadiusKm drops jobs farther than this from a located driver before
	// Limit applies. Zero means no limit.
	MaxRadiusKm float64
	Limit       int
}

// MatchingService lists what a driver may try to claim. The list is a
// snapshot; losing a race on a listed job is resolved by the claim.
type MatchingService struct {
	mylog   mylogger.Logger
	jobs    ports.IJobsRepo
	drivers ports.IDriversRepo
	opts    MatchingOptions
}

func NewMatchingService(log mylogger.Logger, jobs ports.IJobsRepo, drivers ports.IDriversRepo, opts MatchingOptions) *MatchingService {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	return &MatchingService{
		mylog:   log,
		jobs:    jobs,
		drivers: drivers,
		opts:    opts,
	}
}

func (s *MatchingService) Available(ctx context.Context, driverId string) (dto.AvailableJobsResponse, error) {
	log := s.mylog.Action("AvailableJobs").With("driver_id", driverId)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	driver, err := s.drivers.Get(ctx, driverId)
	if err != nil {
		if !errors.Is(err, myerrors.ErrNotFound) {
			log.Error("cannot get driver", err)
		}
		return dto.AvailableJobsResponse{}, err
	}
	if err := eligible(driver); err != nil {
		return dto.AvailableJobsResponse{}, err
	}

	jobs, err := s.jobs.ListAvailable(ctx, ports.AvailableQuery{
		Capabilities: driver.Capabilities,
		Near:         driver.Location,
		RadiusKm:     s.opts.MaxRadiusKm,
		Limit:        s.opts.Limit,
	})
	if err != nil {
		log.Error("cannot list available jobs", err)
		return dto.AvailableJobsResponse{}, err
	}

	out := make([]dto.AvailableJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, dto.NewAvailableJob(j.Job, j.DistanceKm))
	}
	log.Debug("listed", "count", len(out), "ranked", driver.Location != nil)
	return dto.AvailableJobsResponse{Jobs: out}, nil
}
