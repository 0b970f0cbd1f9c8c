package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	"github.com/google/uuid"
)

type DriverService struct {
	mylog   mylogger.Logger
	drivers ports.IDriversRepo
	jobs    ports.IJobsRepo
	events  fanout
	clock   func() time.Time
}

func NewDriverService(log mylogger.Logger, drivers ports.IDriversRepo, jobs ports.IJobsRepo, feed ports.IFeedService) *DriverService {
	return &DriverService{
		mylog:   log,
		drivers: drivers,
		jobs:    jobs,
		events:  fanout{mylog: log, feed: feed},
		clock:   time.Now,
	}
}

// Register creates a driver awaiting approval and offline.
func (s *DriverService) Register(ctx context.Context, req dto.RegisterDriverRequest) (dto.DriverResponse, error) {
	log := s.mylog.Action("RegisterDriver")

	if err := req.Validate(); err != nil {
		return dto.DriverResponse{}, err
	}
	id := strings.TrimSpace(req.DriverID)
	if id == "" {
		id = uuid.NewString()
	}
	if kind, _ := model.ParseChannel(model.DriverChannel(id)); kind == model.ChannelInvalid {
		return dto.DriverResponse{}, myerrors.NewValidation("driver_id", "malformed")
	}

	now := s.clock().UTC()
	d := model.Driver{
		ID:             id,
		Name:           strings.TrimSpace(req.Name),
		ApprovalStatus: model.DriverPending,
		Capabilities:   req.Capabilities,
		Vehicle:        req.Vehicle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.drivers.Create(ctx, d); err != nil {
		if !errors.Is(err, myerrors.ErrValidation) {
			log.Error("cannot insert driver", err)
		}
		return dto.DriverResponse{}, err
	}
	log.Info("driver registered", "driver_id", d.ID)
	return dto.NewDriverResponse(d), nil
}

func (s *DriverService) SetApproval(ctx context.Context, driverId string, status model.ApprovalStatus) (dto.DriverResponse, error) {
	if !status.Valid() {
		return dto.DriverResponse{}, myerrors.NewValidation("status", "must be one of pending, approved, blocked")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d, err := s.drivers.SetApproval(ctx, driverId, status)
	if err != nil {
		return dto.DriverResponse{}, err
	}
	s.mylog.Action("SetApproval").Info("driver approval changed", "driver_id", driverId, "status", string(status))
	return dto.NewDriverResponse(d), nil
}

// GoOnline only changes presence. Approval is checked when the driver claims.
func (s *DriverService) GoOnline(ctx context.Context, driverId string, req dto.PresenceRequest) (dto.DriverResponse, error) {
	if req.Location != nil {
		if err := dto.ValidateLocation("location", *req.Location); err != nil {
			return dto.DriverResponse{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d, err := s.drivers.SetOnline(ctx, driverId, true, req.Location)
	if err != nil {
		return dto.DriverResponse{}, err
	}
	s.mylog.Action("GoOnline").Debug("driver online", "driver_id", driverId)
	return dto.NewDriverResponse(d), nil
}

// GoOffline leaves any assigned jobs with the driver.
func (s *DriverService) GoOffline(ctx context.Context, driverId string) (dto.DriverResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d, err := s.drivers.SetOnline(ctx, driverId, false, nil)
	if err != nil {
		return dto.DriverResponse{}, err
	}
	s.mylog.Action("GoOffline").Debug("driver offline", "driver_id", driverId)
	return dto.NewDriverResponse(d), nil
}

// UpdateLocation stores the driver's position and shares it with the
// customers of the driver's active jobs.
func (s *DriverService) UpdateLocation(ctx context.Context, driverId string, req dto.LocationRequest) (dto.DriverResponse, error) {
	log := s.mylog.Action("UpdateLocation").With("driver_id", driverId)

	loc, err := req.Location()
	if err != nil {
		return dto.DriverResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d, err := s.drivers.UpdateLocation(ctx, driverId, loc)
	if err != nil {
		return dto.DriverResponse{}, err
	}

	active, err := s.jobs.ListActiveByDriver(ctx, driverId)
	if err != nil {
		log.Error("cannot list active jobs", err)
		return dto.NewDriverResponse(d), nil
	}
	at := s.clock().UTC()
	for _, j := range active {
		s.events.publish(ctx, model.EventLocationUpdate, dto.LocationPayload{
			JobID:    j.ID,
			DriverID: driverId,
			Lat:      loc.Latitude,
			Lng:      loc.Longitude,
			At:       at,
		}, model.JobChannel(j.ID), model.CustomerChannel(j.Customer.ID))
	}
	return dto.NewDriverResponse(d), nil
}
